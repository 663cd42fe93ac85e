package imap

import (
	"fmt"
	"io"
)

// Structs

// Framer turns a byte stream into CRLF-terminated lines.
// It is a pure state machine: Feed is called once per byte
// and never looks ahead. Any deviation from strict CRLF
// discipline yields a FramingError, after which the framer
// must not be fed again.
type Framer struct {
	buf    []byte
	crSeen bool
	broken bool

	// MaxLineLength limits the number of bytes a single line
	// may carry, terminator excluded. Zero disables the limit.
	MaxLineLength int
}

// Functions

// NewFramer returns a framer enforcing maxLineLength,
// zero meaning unlimited.
func NewFramer(maxLineLength int) *Framer {

	return &Framer{
		buf:           make([]byte, 0, 256),
		MaxLineLength: maxLineLength,
	}
}

// Feed consumes one byte. Once a full line was received,
// it is returned with done set to true and the framer is
// reset for the next line.
func (f *Framer) Feed(b byte) (line string, done bool, err error) {

	if f.broken {
		return "", false, &FramingError{Reason: "framer used after fault", Offset: len(f.buf)}
	}

	switch {

	case b == '\n':

		if !f.crSeen {
			return "", false, f.fault("received LF (0x0A) byte which was not preceded by CR")
		}

		line = string(f.buf)
		f.Reset()

		return line, true, nil

	case b == '\r':

		if f.crSeen {
			return "", false, f.fault("received CR (0x0D) byte directly after another CR")
		}

		f.crSeen = true

	case f.crSeen:
		return "", false, f.fault(fmt.Sprintf("expected LF (0x0A) after CR but received 0x%02X", b))

	default:

		if (f.MaxLineLength > 0) && (len(f.buf) >= f.MaxLineLength) {
			return "", false, f.fault(fmt.Sprintf("line exceeds maximum length of %d bytes", f.MaxLineLength))
		}

		f.buf = append(f.buf, b)
	}

	return "", false, nil
}

// ReadLine feeds bytes from r until a line is complete.
// io.EOF is passed through unchanged when the stream ends
// between lines, a stream ending mid-line is reported as
// io.ErrUnexpectedEOF.
func (f *Framer) ReadLine(r io.ByteReader) (string, error) {

	for {

		b, err := r.ReadByte()
		if err != nil {

			if (err == io.EOF) && f.Pending() {
				return "", io.ErrUnexpectedEOF
			}

			return "", err
		}

		line, done, err := f.Feed(b)
		if err != nil {
			return "", err
		}

		if done {
			return line, nil
		}
	}
}

// Pending reports whether a partial line is buffered.
func (f *Framer) Pending() bool {
	return len(f.buf) > 0 || f.crSeen
}

// Reset clears the line buffer and the CR flag.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.crSeen = false
}

func (f *Framer) fault(reason string) error {
	f.broken = true
	return &FramingError{Reason: reason, Offset: len(f.buf)}
}
