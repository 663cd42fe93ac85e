package imap

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"crypto/tls"

	"github.com/go-pluto/charon/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Structs

// bufferConn is a net.Conn that serves reads from in and
// collects everything written to it.
type bufferConn struct {
	bytes.Buffer
	in     io.Reader
	closed bool
}

// testClient is the client end of a served session.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// Functions

func (c *bufferConn) Read(b []byte) (int, error) {

	if c.in == nil {
		return 0, io.EOF
	}

	return c.in.Read(b)
}

func (c *bufferConn) Close() error {
	c.closed = true
	return nil
}

func (c *bufferConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 143}
}

func (c *bufferConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (c *bufferConn) SetDeadline(t time.Time) error      { return nil }
func (c *bufferConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *bufferConn) SetWriteDeadline(t time.Time) error { return nil }

// lines returns all written lines without terminators and
// empties the buffer.
func (c *bufferConn) lines() []string {

	out := c.String()
	c.Reset()

	if out == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
}

// newTestSession returns a session writing into a buffer,
// suited for calling Dispatch directly.
func newTestSession(t *testing.T, opts Options) (*Session, *bufferConn) {

	conn := &bufferConn{}

	s, err := NewSession(conn, opts)
	require.Nil(t, err)

	return s, conn
}

// newTCPPair connects two ends over the loopback interface.
func newTCPPair(t *testing.T) (net.Conn, net.Conn) {

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)

	go func() {

		conn, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}

		accepted <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.Nil(t, err)

	server := <-accepted
	require.NotNil(t, server)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	return server, client
}

// serveSession serves a new session over loopback TCP. The
// session must not be touched by the test until done fired.
func serveSession(t *testing.T, opts Options, setup func(s *Session)) (*testClient, *Session, <-chan error) {

	server, client := newTCPPair(t)

	s, err := NewSession(server, opts)
	require.Nil(t, err)

	if setup != nil {
		setup(s)
	}

	done := make(chan error, 1)

	go func() {
		done <- s.Serve(context.Background())
	}()

	return &testClient{
		t:      t,
		conn:   client,
		reader: bufio.NewReader(client),
	}, s, done
}

func (c *testClient) send(line string) {
	c.sendRaw(line + "\r\n")
}

func (c *testClient) sendRaw(data string) {

	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	_, err := c.conn.Write([]byte(data))
	require.Nil(c.t, err, "sending '%s' should not fail", data)
}

func (c *testClient) receive() string {

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	line, err := c.reader.ReadString('\n')
	require.Nil(c.t, err, "receiving a line should not fail")
	require.True(c.t, strings.HasSuffix(line, "\r\n"), "line '%s' should end in CRLF", line)

	return strings.TrimSuffix(line, "\r\n")
}

func (c *testClient) expectClosed() {

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	rest, err := c.reader.ReadString('\n')
	assert.Equal(c.t, "", rest, "no further data expected")
	assert.NotNil(c.t, err, "connection should have been closed")
}

// startTLS turns the client into a TLS client on the same
// connection. Nothing may be buffered at that point.
func (c *testClient) startTLS() *tls.Conn {

	require.Equal(c.t, 0, c.reader.Buffered(), "no plaintext bytes may follow the STARTTLS completion")

	tlsConn := tls.Client(c.conn, &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	})

	tlsConn.SetDeadline(time.Now().Add(5 * time.Second))
	require.Nil(c.t, tlsConn.Handshake())
	tlsConn.SetDeadline(time.Time{})

	c.conn = tlsConn
	c.reader = bufio.NewReader(tlsConn)

	return tlsConn
}

func waitDone(t *testing.T, done <-chan error) error {

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
	}

	return nil
}

func testTLSConfig(t *testing.T) *tls.Config {

	certPEM, keyPEM, err := crypto.GenerateSelfSigned([]string{"127.0.0.1"}, time.Hour)
	require.Nil(t, err)

	config, err := crypto.NewTLSConfigFromPEM(certPEM, keyPEM)
	require.Nil(t, err)

	return config
}

// TestNewSession checks the initial state of a session.
func TestNewSession(t *testing.T) {

	s, conn := newTestSession(t, Options{})

	assert.Equal(t, StateNotAuthenticated, s.State())
	assert.Equal(t, []string{"IMAP4rev1", "AUTH=PLAIN"}, s.Capabilities())
	assert.False(t, s.HasCapability("STARTTLS"))
	assert.False(t, s.SupportsTLS())
	assert.False(t, s.TLSActive())
	assert.False(t, s.LoginDisabled())
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 0, conn.Len(), "nothing may be written before the greeting")

	_, err := NewSession(&bufferConn{}, Options{TLSConfig: &tls.Config{}})
	assert.ErrorIs(t, err, ErrNoCertificate)
}

// TestSessionsDoNotShareRegistry makes sure overrides in
// one session are invisible to others.
func TestSessionsDoNotShareRegistry(t *testing.T) {

	template := DefaultRegistry()

	first, _ := newTestSession(t, Options{Registry: template})
	second, _ := newTestSession(t, Options{Registry: template})

	first.Register(Command{Name: "x-custom", AllowedStates: StateAny})

	_, found := first.Registry().Lookup("X-CUSTOM")
	assert.True(t, found)

	_, found = second.Registry().Lookup("X-CUSTOM")
	assert.False(t, found, "second session should not see the override")

	_, found = template.Lookup("X-CUSTOM")
	assert.False(t, found, "template registry should stay untouched")
}

// TestEnableTLS exercises the capability hook.
func TestEnableTLS(t *testing.T) {

	s, _ := newTestSession(t, Options{})

	assert.ErrorIs(t, s.EnableTLS(nil), ErrNoCertificate)
	assert.ErrorIs(t, s.EnableTLS(&tls.Config{}), ErrNoCertificate)
	assert.False(t, s.SupportsTLS(), "failed enabling must not advertise STARTTLS")

	require.Nil(t, s.EnableTLS(testTLSConfig(t)))
	assert.Equal(t, []string{"IMAP4rev1", "AUTH=PLAIN", "STARTTLS", "LOGINDISABLED"}, s.Capabilities())
	assert.True(t, s.LoginDisabled())

	// Enabling twice must not duplicate entries.
	require.Nil(t, s.EnableTLS(testTLSConfig(t)))
	assert.Equal(t, []string{"IMAP4rev1", "AUTH=PLAIN", "STARTTLS", "LOGINDISABLED"}, s.Capabilities())

	s.DisableTLS()
	assert.Equal(t, []string{"IMAP4rev1", "AUTH=PLAIN"}, s.Capabilities())
	assert.False(t, s.LoginDisabled())
	assert.False(t, s.SupportsTLS())
}

// TestCapabilityEditing checks order preservation when
// handlers extend the capability list.
func TestCapabilityEditing(t *testing.T) {

	s, _ := newTestSession(t, Options{})

	s.AddCapability("IDLE")
	s.AddCapability("idle")
	s.AddCapability("UIDPLUS")
	assert.Equal(t, "IMAP4rev1 AUTH=PLAIN IDLE UIDPLUS", s.CapabilityString())

	s.RemoveCapability("auth=plain")
	assert.Equal(t, []string{"IMAP4rev1", "IDLE", "UIDPLUS"}, s.Capabilities())
}

// TestSetState checks that LOGOUT is absorbing.
func TestSetState(t *testing.T) {

	s, _ := newTestSession(t, Options{})

	assert.Nil(t, s.SetState(StateAuthenticated))
	assert.Nil(t, s.SetState(StateSelected))
	assert.NotNil(t, s.SetState(StateSelected|StateAuthenticated), "masks are no valid session state")
	assert.Equal(t, StateSelected, s.State())

	assert.Nil(t, s.SetState(StateLogout))
	assert.ErrorIs(t, s.SetState(StateNotAuthenticated), ErrLogoutState)
	assert.ErrorIs(t, s.SetState(StateAuthenticated), ErrLogoutState)
	assert.Nil(t, s.SetState(StateLogout))
	assert.Equal(t, StateLogout, s.State())
}

// TestGreet checks that the greeting is sent exactly once.
func TestGreet(t *testing.T) {

	s, conn := newTestSession(t, Options{Greeting: "charon ready"})

	require.Nil(t, s.Greet())
	assert.ErrorIs(t, s.Greet(), ErrAlreadyGreeted)
	assert.Equal(t, []string{"* OK charon ready"}, conn.lines())
}

// TestClose checks that Close is idempotent and that
// nothing is written afterwards.
func TestClose(t *testing.T) {

	s, conn := newTestSession(t, Options{})

	assert.Nil(t, s.Close())
	assert.Nil(t, s.Close())
	assert.True(t, conn.closed)
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.OK("a1", "too late"), ErrSessionClosed)
}

// TestServeScenario walks through greeting, CAPABILITY,
// tag reuse and LOGOUT on a real connection.
func TestServeScenario(t *testing.T) {

	c, s, done := serveSession(t, Options{}, nil)

	assert.Equal(t, "* OK IMAP4rev1 server ready", c.receive())

	c.send("A1 CAPABILITY")
	assert.Equal(t, "* CAPABILITY IMAP4rev1 AUTH=PLAIN", c.receive())
	assert.Equal(t, "A1 OK CAPABILITY completed", c.receive())

	c.send("A1 NOOP")
	assert.Equal(t, "A1 BAD Tag 'A1' already seen before", c.receive())

	c.send("A2 LOGOUT")
	assert.Equal(t, "* BYE IMAP4rev1 Server logging out", c.receive())
	assert.Equal(t, "A2 OK LOGOUT completed", c.receive())
	c.expectClosed()

	assert.Nil(t, waitDone(t, done))
	assert.Equal(t, StateLogout, s.State())
	assert.True(t, s.Closed())
}

// TestServeDisconnect ends a session by closing the
// client side.
func TestServeDisconnect(t *testing.T) {

	c, _, done := serveSession(t, Options{}, nil)

	c.receive()
	c.send("a NOOP")
	assert.Equal(t, "a OK NOOP", c.receive())

	c.conn.Close()

	assert.Nil(t, waitDone(t, done))
}

// TestServeCancel checks that cancelling the context
// unblocks a session waiting for input.
func TestServeCancel(t *testing.T) {

	server, client := newTCPPair(t)

	s, err := NewSession(server, Options{})
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(ctx)
	}()

	line, err := bufio.NewReader(client).ReadString('\n')
	require.Nil(t, err)
	assert.Equal(t, "* OK IMAP4rev1 server ready\r\n", line)

	cancel()

	assert.ErrorIs(t, waitDone(t, done), context.Canceled)
}

// TestServeFramingFault checks that a bare LF ends the
// session and that nothing after it is dispatched.
func TestServeFramingFault(t *testing.T) {

	c, _, done := serveSession(t, Options{}, nil)

	c.receive()
	c.sendRaw("A1 NOOP\nA2 NOOP\r\n")

	assert.Equal(t, "* BAD Received LF (0x0A) byte which was not preceded by CR", c.receive())
	c.expectClosed()

	err := waitDone(t, done)
	assert.True(t, IsFramingFault(err), "Serve should report the framing fault")
}

// TestServeLineTooLong enforces the configured line limit.
func TestServeLineTooLong(t *testing.T) {

	c, _, done := serveSession(t, Options{MaxLineLength: 16}, nil)

	c.receive()
	c.send("A1 NOOP")
	assert.Equal(t, "A1 OK NOOP", c.receive())

	c.sendRaw("A2 NOOP and a lot more text\r\n")
	assert.Equal(t, "* BAD Line exceeds maximum length of 16 bytes", c.receive())
	c.expectClosed()

	assert.True(t, IsFramingFault(waitDone(t, done)))
}
