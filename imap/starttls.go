package imap

import (
	"context"

	"crypto/tls"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Functions

// StartTLS handles the STARTTLS command. It announces the
// negotiation in plaintext, performs the server side of the
// TLS handshake on the very same connection and, on success,
// swaps the session over to the decrypted transport. Lines
// are not read while this runs because the handler executes
// inside the session's read loop.
func StartTLS(ctx context.Context, s *Session, tag string, args []string) error {

	if s.TLSActive() {
		return s.BAD(tag, "TLS is already active")
	}

	if !s.supportTLS {

		level.Info(s.logger).Log(
			"msg", "refused STARTTLS",
			"err", ErrUpgradeUnsupported,
		)
		s.metrics.Upgrades.With("result", "unsupported").Add(1)

		return s.BAD(tag, "STARTTLS not supported")
	}

	// Announce the handshake before any TLS byte is exchanged.
	if err := s.OK(tag, "Begin TLS negotiation now"); err != nil {
		return err
	}

	hsCtx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	upgraded, err := s.conn.Upgrade(hsCtx, s.tlsConfig)
	if err != nil {

		s.metrics.Upgrades.With("result", "failure").Add(1)
		level.Warn(s.logger).Log(
			"msg", "TLS handshake failed",
			"err", err,
		)

		// Best effort, the plaintext side may already be gone.
		_ = s.conn.Send(UntaggedStatus(StatusNO, "Error starting secure connection"))

		return errors.Wrap(err, "STARTTLS")
	}

	s.conn = upgraded

	s.supportTLS = false
	s.loginDisabled = false
	s.RemoveCapability("STARTTLS")
	s.RemoveCapability("LOGINDISABLED")

	// STARTTLS is not legal on a protected connection.
	if cmd, found := s.registry.Lookup("STARTTLS"); found {
		cmd.AllowedStates = 0
		s.registry.Register(cmd)
	}

	s.metrics.Upgrades.With("result", "success").Add(1)

	state, _ := s.ConnectionState()
	level.Info(s.logger).Log(
		"msg", "connection upgraded to TLS",
		"version", tls.VersionName(state.Version),
		"cipher", tls.CipherSuiteName(state.CipherSuite),
	)

	return nil
}
