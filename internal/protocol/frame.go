// Package protocol defines the wire format shared by every node.
//
// Frames are newline-delimited: the sender writes the payload followed by a
// single '\n', the receiver buffers incoming bytes and splits on '\n',
// discarding the delimiter. Empty frames carry nothing and are skipped. A
// trailing partial frame left when the stream ends is dropped.
package protocol

import (
	"bufio"
	"bytes"
	"io"
)

const (
	Delimiter byte = '\n'

	// MaxFrameSize bounds a single frame on the receive side.
	MaxFrameSize = 1 << 20
)

// Frame returns payload followed by the delimiter. payload is not modified.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, payload...)
	return append(out, Delimiter)
}

// SplitFrames is a bufio.SplitFunc that yields one token per frame,
// without the delimiter. Empty frames are returned as empty tokens.
func SplitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, Delimiter); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		// Incomplete trailing frame.
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// Scanner reads non-empty frames from a stream.
type Scanner struct {
	s *bufio.Scanner
}

// NewScanner returns a Scanner reading frames from r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxFrameSize)
	s.Split(SplitFrames)
	return &Scanner{s: s}
}

// Scan advances to the next non-empty frame.
func (s *Scanner) Scan() bool {
	for s.s.Scan() {
		if len(s.s.Bytes()) > 0 {
			return true
		}
	}
	return false
}

// Bytes returns the current frame. The slice is only valid until the next
// call to Scan.
func (s *Scanner) Bytes() []byte { return s.s.Bytes() }

// Err returns the first non-EOF error encountered.
func (s *Scanner) Err() error { return s.s.Err() }
