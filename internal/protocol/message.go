package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("protocol: malformed message")

// NewMessage builds the text a node broadcasts on each tick: its id and
// the current sequence number, e.g. "node-1#4".
// Receivers only log the text; nothing relies on the sequence yet.
func NewMessage(id string, seq uint64) string {
	return fmt.Sprintf("%s#%d", id, seq)
}

// ParseMessage splits a message built by NewMessage.
func ParseMessage(s string) (id string, seq uint64, err error) {
	i := strings.LastIndexByte(s, '#')
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	seq, err = strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return s[:i], seq, nil
}
