package imap

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"crypto/tls"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Constants

// DefaultGreeting is the text of the untagged OK greeting.
const DefaultGreeting = "IMAP4rev1 server ready"

// DefaultHandshakeTimeout bounds a STARTTLS handshake.
const DefaultHandshakeTimeout = 30 * time.Second

// Structs

// Options configure a new session. Zero values select
// the defaults documented on each field.
type Options struct {

	// Registry is cloned into the session. Defaults
	// to DefaultRegistry().
	Registry *Registry

	// Logger receives session events. Defaults to a nop logger.
	Logger log.Logger

	// Metrics defaults to discarding counters.
	Metrics Metrics

	// Greeting is the text after '* OK'. Defaults
	// to DefaultGreeting.
	Greeting string

	// MaxLineLength in bytes, zero disables the limit.
	MaxLineLength int

	// HandshakeTimeout defaults to DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// TLSConfig, if set, enables STARTTLS right away.
	TLSConfig *tls.Config
}

// Session carries all state of one client connection.
// It must only be used from the goroutine serving it.
type Session struct {
	ID               string
	state            State
	tags             *TagTracker
	capabilities     []string
	supportTLS       bool
	loginDisabled    bool
	tlsConfig        *tls.Config
	conn             *Connection
	registry         *Registry
	framer           *Framer
	logger           log.Logger
	metrics          Metrics
	greeting         string
	greeted          bool
	closed           bool
	handshakeTimeout time.Duration
	userName         string
}

// Functions

// NewSession prepares a session on top of conn. Nothing
// is written to conn until Greet or Serve is called.
func NewSession(conn net.Conn, opts Options) (*Session, error) {

	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	greeting := opts.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}

	handshakeTimeout := opts.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}

	id := uuid.NewString()

	s := &Session{
		ID:               id,
		state:            StateNotAuthenticated,
		tags:             NewTagTracker(),
		capabilities:     []string{"IMAP4rev1", "AUTH=PLAIN"},
		conn:             NewConnection(conn),
		registry:         registry.Clone(),
		framer:           NewFramer(opts.MaxLineLength),
		logger:           log.With(logger, "session", id, "remote", remoteAddr(conn)),
		metrics:          opts.Metrics.withDefaults(),
		greeting:         greeting,
		handshakeTimeout: handshakeTimeout,
	}

	if opts.TLSConfig != nil {

		if err := s.EnableTLS(opts.TLSConfig); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// SetState moves the session into state. LOGOUT is
// absorbing, leaving it is refused with ErrLogoutState.
func (s *Session) SetState(state State) error {

	switch state {
	case StateNotAuthenticated, StateAuthenticated, StateSelected, StateLogout:
	default:
		return errors.Errorf("invalid session state %d", state)
	}

	if (s.state == StateLogout) && (state != StateLogout) {
		return ErrLogoutState
	}

	if s.state != state {
		level.Debug(s.logger).Log(
			"msg", "session state changed",
			"from", s.state,
			"to", state,
		)
	}

	s.state = state

	return nil
}

// UserName returns the name recorded by a successful login.
func (s *Session) UserName() string {
	return s.userName
}

// SetUserName records the authenticated user.
func (s *Session) SetUserName(name string) {
	s.userName = name
}

// Logger returns the session scoped logger.
func (s *Session) Logger() log.Logger {
	return s.logger
}

// Registry returns the session's own command registry.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Register overrides or adds a command for this session only.
func (s *Session) Register(cmd Command) {
	s.registry.Register(cmd)
}

// Capabilities returns a copy of the advertised capabilities.
func (s *Session) Capabilities() []string {
	return append([]string(nil), s.capabilities...)
}

// CapabilityString joins the capabilities with spaces.
func (s *Session) CapabilityString() string {
	return strings.Join(s.capabilities, " ")
}

// HasCapability reports whether name is advertised.
func (s *Session) HasCapability(name string) bool {

	for _, c := range s.capabilities {
		if strings.EqualFold(c, name) {
			return true
		}
	}

	return false
}

// AddCapability appends name unless already advertised.
func (s *Session) AddCapability(name string) {

	if !s.HasCapability(name) {
		s.capabilities = append(s.capabilities, name)
	}
}

// RemoveCapability drops name from the advertised list.
func (s *Session) RemoveCapability(name string) {

	kept := s.capabilities[:0]
	for _, c := range s.capabilities {
		if !strings.EqualFold(c, name) {
			kept = append(kept, c)
		}
	}

	s.capabilities = kept
}

// EnableTLS makes STARTTLS available using config. As long
// as the connection is not upgraded, plaintext LOGIN is
// disabled and advertised as LOGINDISABLED.
func (s *Session) EnableTLS(config *tls.Config) error {

	if (config == nil) || ((len(config.Certificates) == 0) && (config.GetCertificate == nil) && (config.GetConfigForClient == nil)) {
		return ErrNoCertificate
	}

	if s.conn.Secure() {
		return errors.New("connection is already secure")
	}

	if s.supportTLS {
		s.DisableTLS()
	}

	s.tlsConfig = config
	s.supportTLS = true
	s.AddCapability("STARTTLS")

	if !s.loginDisabled {
		s.loginDisabled = true
		s.AddCapability("LOGINDISABLED")
	}

	return nil
}

// DisableTLS withdraws STARTTLS and LOGINDISABLED again.
func (s *Session) DisableTLS() {

	if !s.supportTLS {
		return
	}

	s.tlsConfig = nil
	s.supportTLS = false
	s.RemoveCapability("STARTTLS")

	if s.loginDisabled {
		s.loginDisabled = false
		s.RemoveCapability("LOGINDISABLED")
	}
}

// SupportsTLS reports whether STARTTLS can be performed.
func (s *Session) SupportsTLS() bool {
	return s.supportTLS
}

// TLSActive reports whether the session talks over TLS.
func (s *Session) TLSActive() bool {
	return s.conn.Secure()
}

// LoginDisabled reports whether LOGINDISABLED is in effect.
func (s *Session) LoginDisabled() bool {
	return s.loginDisabled
}

// ConnectionState returns the TLS state of an upgraded
// session and false for plaintext sessions.
func (s *Session) ConnectionState() (tls.ConnectionState, bool) {

	tlsConn, ok := s.conn.Conn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}

	return tlsConn.ConnectionState(), true
}

// Greet sends the untagged greeting. It may only be
// called once per session.
func (s *Session) Greet() error {

	if s.greeted {
		return ErrAlreadyGreeted
	}

	s.greeted = true

	return s.Send(UntaggedStatus(StatusOK, s.greeting))
}

// Send writes resp through the current transport.
func (s *Session) Send(resp Response) error {

	if s.closed {
		return ErrSessionClosed
	}

	return s.conn.Send(resp)
}

// OK completes tag successfully.
func (s *Session) OK(tag string, text string) error {
	return s.Send(Tagged(tag, StatusOK, text))
}

// NO completes tag with an operational failure.
func (s *Session) NO(tag string, text string) error {
	return s.Send(Tagged(tag, StatusNO, text))
}

// BAD completes tag with a protocol error.
func (s *Session) BAD(tag string, text string) error {
	return s.Send(Tagged(tag, StatusBAD, text))
}

// Untagged sends an untagged data line.
func (s *Session) Untagged(text string) error {
	return s.Send(Untagged(text))
}

// Serve greets the client unless that already happened
// and processes lines until the client logs out, the
// connection breaks, a fatal fault occurs or ctx is done.
// The connection is closed when Serve returns. A clean
// logout or disconnect returns nil.
func (s *Session) Serve(ctx context.Context) error {

	defer s.Close()

	// Unblock pending reads and writes on cancellation.
	// Closing the raw connection also tears down a TLS
	// layer installed on top of it later on.
	raw := s.conn.Conn
	stop := context.AfterFunc(ctx, func() {
		raw.Close()
	})
	defer stop()

	if !s.greeted {

		if err := s.Greet(); err != nil {
			return errors.Wrap(err, "sending greeting")
		}
	}

	for s.state != StateLogout {

		// The transport is looked up on every iteration
		// because STARTTLS replaces it.
		line, err := s.conn.Receive(s.framer)
		if err != nil {

			if IsFramingFault(err) {

				s.metrics.FramingFaults.Add(1)
				level.Warn(s.logger).Log(
					"msg", "closing connection after framing fault",
					"err", err,
				)

				var fe *FramingError
				errors.As(err, &fe)
				_ = s.Send(UntaggedStatus(StatusBAD, capitalize(fe.Reason)))

				return err
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			if errors.Is(err, io.EOF) {
				level.Debug(s.logger).Log("msg", "client disconnected")
				return nil
			}

			return errors.Wrap(err, "receiving line")
		}

		if _, err := s.Dispatch(ctx, line); err != nil {

			level.Warn(s.logger).Log(
				"msg", "closing connection after fatal command error",
				"err", err,
			)

			return err
		}
	}

	level.Debug(s.logger).Log("msg", "session logged out")

	return nil
}

// Close terminates the connection. It is safe to call
// Close more than once.
func (s *Session) Close() error {

	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.conn.Terminate(); (err != nil) && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "closing connection")
	}

	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed
}

func remoteAddr(c net.Conn) string {

	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}

func capitalize(text string) string {

	if text == "" {
		return text
	}

	return strings.ToUpper(text[:1]) + text[1:]
}
