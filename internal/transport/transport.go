// Package transport defines the peer communication interface and provides
// implementations for production (TCP) and simulation (seeded in-memory
// queues).
package transport

import (
	"context"
	"errors"
)

var (
	// ErrUnknownPeer is returned by Send when the destination is not a
	// configured peer.
	ErrUnknownPeer = errors.New("transport: unknown peer")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport: closed")
)

// Message is one transported unit. From is the originating peer id when
// the transport knows it. Payload may be empty.
type Message struct {
	From    string
	Payload []byte
}

// Transport abstracts peer-to-peer message I/O.
// Node and broadcast logic use this interface exclusively so that a
// simulation can substitute a seeded in-memory transport for the network.
type Transport interface {
	// Send delivers payload to peer. The loopback transport never fails;
	// the network transport fails when peer is unknown or unreachable.
	Send(ctx context.Context, peer string, payload []byte) error

	// Receive polls for the next inbound message without blocking.
	// ok is false when nothing is pending; that is not an error.
	// A message returned here has been removed from the transport's
	// buffer, and nothing else is ever removed from it.
	Receive() (msg Message, ok bool, err error)
}
