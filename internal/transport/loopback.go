package transport

import (
	"bytes"
	"context"
	"sync"
)

// Loopback is the simulated Transport: everything sent is recorded and then
// injected into its own Reorderer, so a single process exercises the whole
// send/receive path without real peers.
type Loopback struct {
	queue *Reorderer

	mu   sync.Mutex
	sent []Message
}

// NewLoopback returns a Loopback delivering through queue.
func NewLoopback(queue *Reorderer) *Loopback {
	return &Loopback{queue: queue}
}

// Send records (peer, payload) and injects it. It only fails when ctx is
// already done, in which case nothing is recorded.
func (l *Loopback) Send(ctx context.Context, peer string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.sent = append(l.sent, Message{From: peer, Payload: bytes.Clone(payload)})
	l.mu.Unlock()

	l.queue.Inject(peer, payload)
	return nil
}

func (l *Loopback) Receive() (Message, bool, error) {
	return l.queue.Receive()
}

// Inject places a message directly on the inbound queue.
func (l *Loopback) Inject(origin string, payload []byte) {
	l.queue.Inject(origin, payload)
}

// Sent returns the send history. From holds the destination peer.
func (l *Loopback) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.sent))
	copy(out, l.sent)
	return out
}

// Queue returns the underlying reordering queue.
func (l *Loopback) Queue() *Reorderer { return l.queue }
