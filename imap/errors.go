package imap

import (
	"fmt"

	"github.com/pkg/errors"
)

// Variables

var (
	// ErrHandshakeFailure marks a failed TLS handshake during
	// STARTTLS. The transport is left in an indeterminate state
	// afterwards, so the connection has to be closed.
	ErrHandshakeFailure = errors.New("tls handshake failed")

	// ErrUpgradeUnsupported is reported when STARTTLS is requested
	// on a session that was never supplied a TLS configuration.
	ErrUpgradeUnsupported = errors.New("transport upgrade not supported")

	// ErrAlreadyGreeted is returned by a second call to Greet.
	ErrAlreadyGreeted = errors.New("greeting already sent")

	// ErrLogoutState is returned when a handler tries to leave
	// the absorbing LOGOUT state.
	ErrLogoutState = errors.New("session is in logout state")

	// ErrSessionClosed is returned for writes on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoCertificate is returned by EnableTLS for a config
	// that cannot serve any certificate.
	ErrNoCertificate = errors.New("tls config carries no certificate")
)

// Structs

// FramingError describes a violation of the CRLF line
// discipline. It is fatal for the connection it occurred on.
type FramingError struct {
	Reason string
	Offset int
}

// Functions

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing fault at line offset %d: %s", e.Offset, e.Reason)
}

// IsFramingFault reports whether err is or wraps a FramingError.
func IsFramingFault(err error) bool {

	var fe *FramingError
	return errors.As(err, &fe)
}
