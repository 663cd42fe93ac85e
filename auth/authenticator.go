package auth

import (
	"fmt"

	"github.com/go-pluto/charon/config"
	"github.com/go-pluto/charon/imap"
)

// Structs

// AcceptAll lets every user name and password pair pass.
// It is meant for test setups only.
type AcceptAll struct{}

// Functions

// AuthenticatePlain never fails.
func (a AcceptAll) AuthenticatePlain(username string, password string, clientAddr string) error {
	return nil
}

// NewAuthenticator initializes the adapter selected in
// the Auth section of the config file.
func NewAuthenticator(conf config.Auth) (imap.PlainAuthenticator, error) {

	switch conf.Adapter {
	case "", "AcceptAll":
		return AcceptAll{}, nil
	case "AuthFile":

		a, err := NewFileAuthenticator(conf.File, conf.Separator)
		if err != nil {
			return nil, err
		}

		return a, nil
	}

	return nil, fmt.Errorf("[auth.NewAuthenticator] Unknown auth adapter '%s'", conf.Adapter)
}
