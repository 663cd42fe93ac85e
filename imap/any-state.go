package imap

import (
	"context"
)

// Functions

// Capability handles the CAPABILITY command. It lists the
// capabilities currently advertised by the session.
func Capability(ctx context.Context, s *Session, tag string, args []string) error {

	if err := s.Untagged("CAPABILITY " + s.CapabilityString()); err != nil {
		return err
	}

	return s.OK(tag, "CAPABILITY completed")
}

// Logout correctly ends a connection with a client. The
// final lines are sent before the session enters LOGOUT,
// which makes the serve loop close the connection.
func Logout(ctx context.Context, s *Session, tag string, args []string) error {

	if err := s.Send(UntaggedStatus(StatusBYE, "IMAP4rev1 Server logging out")); err != nil {
		return err
	}

	if err := s.OK(tag, "LOGOUT completed"); err != nil {
		return err
	}

	return s.SetState(StateLogout)
}
