package imap

import (
	"context"
	"strings"

	"github.com/go-kit/log/level"
)

// Interfaces

// PlainAuthenticator checks a user name and password pair
// as submitted with LOGIN. clientAddr is the remote address
// of the connection the credentials arrived on.
type PlainAuthenticator interface {
	AuthenticatePlain(username string, password string, clientAddr string) error
}

// Functions

// Authenticate handles the AUTHENTICATE command. No SASL
// mechanism is available by default, every attempt is
// refused.
func Authenticate(ctx context.Context, s *Session, tag string, args []string) error {
	return s.NO(tag, "Do not know any AUTHENTICATE mechanism")
}

// Login handles the LOGIN command by accepting any
// credentials. Deployments replace it, for example with
// LoginHandler, via Registry.Register.
func Login(ctx context.Context, s *Session, tag string, args []string) error {

	if len(args) != 2 {
		return s.BAD(tag, "Command LOGIN was not sent with exactly two parameters")
	}

	return completeLogin(s, tag, unquote(args[0]))
}

// LoginHandler returns a LOGIN handler that refuses
// plaintext credentials while LOGINDISABLED is advertised
// and verifies them with auth otherwise. A nil auth
// accepts every user name and password pair.
func LoginHandler(auth PlainAuthenticator) HandlerFunc {

	return func(ctx context.Context, s *Session, tag string, args []string) error {

		if s.LoginDisabled() {
			return s.NO(tag, "Command LOGIN is disabled. Do not send plaintext login information.")
		}

		if len(args) != 2 {
			return s.BAD(tag, "Command LOGIN was not sent with exactly two parameters")
		}

		username := unquote(args[0])
		password := unquote(args[1])

		if auth != nil {

			if err := auth.AuthenticatePlain(username, password, remoteAddr(s.conn.Conn)); err != nil {

				level.Info(s.logger).Log(
					"msg", "login rejected",
					"user", username,
					"err", err,
				)

				return s.NO(tag, "Name and / or password wrong")
			}
		}

		return completeLogin(s, tag, username)
	}
}

func completeLogin(s *Session, tag string, username string) error {

	if err := s.SetState(StateAuthenticated); err != nil {
		return err
	}

	s.SetUserName(username)

	level.Info(s.logger).Log("msg", "login succeeded", "user", username)

	return s.OK(tag, "LOGIN completed")
}

// unquote strips one pair of surrounding double quotes
// from an IMAP quoted string and resolves its \" and \\
// escapes. Atoms are returned unchanged.
func unquote(arg string) string {

	if (len(arg) < 2) || (arg[0] != '"') || (arg[len(arg)-1] != '"') {
		return arg
	}

	inner := arg[1 : len(arg)-1]

	var b strings.Builder
	b.Grow(len(inner))

	for i := 0; i < len(inner); i++ {

		if (inner[i] == '\\') && ((i + 1) < len(inner)) && ((inner[i+1] == '"') || (inner[i+1] == '\\')) {
			i++
		}

		b.WriteByte(inner[i])
	}

	return b.String()
}
