package imap

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"

	"crypto/tls"

	"github.com/pkg/errors"
)

// Structs

// Connection is the transport a session currently talks
// over: the raw network connection before STARTTLS, the
// decrypted side of a TLS connection afterwards. A session
// holds exactly one Connection and replaces it as a whole
// once an upgrade succeeded.
type Connection struct {
	Conn   net.Conn
	Reader *bufio.Reader
	secure bool
}

// prefixConn replays bytes that were already buffered
// from the plaintext connection before reading on.
type prefixConn struct {
	net.Conn
	r io.Reader
}

// Functions

// NewConnection wraps c into a Connection with its own
// buffered reader. Connections of type *tls.Conn are
// considered secure right away.
func NewConnection(c net.Conn) *Connection {

	_, secure := c.(*tls.Conn)

	return &Connection{
		Conn:   c,
		Reader: bufio.NewReader(c),
		secure: secure,
	}
}

// ReadByte reads the next byte off the connection.
func (c *Connection) ReadByte() (byte, error) {
	return c.Reader.ReadByte()
}

// Receive reads the next complete line using f.
func (c *Connection) Receive(f *Framer) (string, error) {
	return f.ReadLine(c)
}

// Send encodes resp and writes it to the connection.
func (c *Connection) Send(resp Response) error {

	if _, err := c.Conn.Write(resp.Encode()); err != nil {
		return errors.Wrap(err, "writing response")
	}

	return nil
}

// Secure reports whether the connection is TLS protected.
func (c *Connection) Secure() bool {
	return c.secure
}

// Upgrade runs a server-side TLS handshake on top of the
// connection and returns the decrypted connection. Bytes
// the plaintext reader already buffered are handed to the
// TLS layer first. The receiver must not be used for reads
// after calling Upgrade, whatever its outcome.
func (c *Connection) Upgrade(ctx context.Context, config *tls.Config) (*Connection, error) {

	raw := c.Conn

	if n := c.Reader.Buffered(); n > 0 {

		pending, err := c.Reader.Peek(n)
		if err != nil {
			return nil, errors.Wrap(err, "draining plaintext buffer")
		}

		raw = &prefixConn{
			Conn: c.Conn,
			r:    io.MultiReader(bytes.NewReader(append([]byte(nil), pending...)), c.Conn),
		}
	}

	tlsConn := tls.Server(raw, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrap(ErrHandshakeFailure, err.Error())
	}

	return &Connection{
		Conn:   tlsConn,
		Reader: bufio.NewReader(tlsConn),
		secure: true,
	}, nil
}

// Terminate closes the connection. For TLS connections a
// close_notify alert is sent before the socket is closed.
func (c *Connection) Terminate() error {
	return c.Conn.Close()
}

func (p *prefixConn) Read(b []byte) (int, error) {
	return p.r.Read(b)
}
