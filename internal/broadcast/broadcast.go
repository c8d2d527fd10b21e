// Package broadcast fans a payload out to a fixed peer set and folds
// inbound payloads into the node's log.
//
// Fan-out is best effort: every peer is sent to concurrently, the layer
// waits for all sends, and the first failure is returned. Peers that were
// already sent to are neither retried nor rolled back.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jdeinum/simulation-testing/internal/journal"
	"github.com/jdeinum/simulation-testing/internal/telemetry"
	"github.com/jdeinum/simulation-testing/internal/transport"
)

// ErrDecode is returned by Receive when an inbound payload is not valid
// UTF-8. The message is dropped; callers should log it and carry on.
var ErrDecode = errors.New("broadcast: payload is not valid UTF-8")

// Layer owns the peer set, the sequence counter and the log of one node.
type Layer struct {
	peers  []string
	tr     transport.Transport
	log    journal.Log
	fanout int
	logger *zap.Logger

	seq atomic.Uint64
}

type Option func(*Layer)

// WithLog replaces the default in-memory log.
func WithLog(l journal.Log) Option {
	return func(b *Layer) { b.log = l }
}

// WithFanout caps the number of sends in flight. n <= 0 sends to every
// peer at once. A cap of 1 sends in sorted peer order, which simulations
// use to keep runs reproducible.
func WithFanout(n int) Option {
	return func(b *Layer) { b.fanout = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Layer) { b.logger = l }
}

// New builds a Layer over tr. Duplicate peer ids are collapsed; the set
// does not change afterwards.
func New(peers []string, tr transport.Transport, opts ...Option) *Layer {
	set := slices.Clone(peers)
	slices.Sort(set)
	set = slices.Compact(set)

	b := &Layer{
		peers:  set,
		tr:     tr,
		log:    journal.NewMemory(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("broadcast")
	return b
}

// Broadcast sends payload to every peer and waits for all sends to finish.
// On success the sequence counter advances by one.
func (b *Layer) Broadcast(ctx context.Context, payload []byte) error {
	var g errgroup.Group
	if b.fanout > 0 {
		g.SetLimit(b.fanout)
	}
	for _, peer := range b.peers {
		g.Go(func() error {
			if err := b.tr.Send(ctx, peer, payload); err != nil {
				telemetry.SendsTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("broadcast: send to %s: %w", peer, err)
			}
			telemetry.SendsTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.BroadcastsTotal.WithLabelValues("error").Inc()
		return err
	}

	seq := b.seq.Add(1)
	telemetry.BroadcastsTotal.WithLabelValues("ok").Inc()
	b.logger.Debug("broadcast", zap.Int("peers", len(b.peers)), zap.Uint64("seq", seq))
	return nil
}

// Receive polls the transport for one message. ok is true only when a
// message was observed: its trimmed text has been appended to the log and
// the raw payload is returned. Empty and whitespace-only payloads are
// consumed without being observed. Invalid UTF-8 yields ErrDecode.
func (b *Layer) Receive() (payload []byte, ok bool, err error) {
	msg, ok, err := b.tr.Receive()
	if err != nil {
		return nil, false, fmt.Errorf("broadcast: receive: %w", err)
	}
	if !ok || len(msg.Payload) == 0 {
		return nil, false, nil
	}
	if !utf8.Valid(msg.Payload) {
		telemetry.DecodeErrorsTotal.Inc()
		return nil, false, fmt.Errorf("%w: %d bytes from %q", ErrDecode, len(msg.Payload), msg.From)
	}
	text := strings.TrimSpace(string(msg.Payload))
	if text == "" {
		return nil, false, nil
	}
	if err := b.log.Append(text); err != nil {
		return nil, false, fmt.Errorf("broadcast: %w", err)
	}
	telemetry.ReceivedTotal.Inc()
	telemetry.LogEntries.Inc()
	return msg.Payload, true, nil
}

// Record appends a locally originated message to the log.
func (b *Layer) Record(text string) error {
	if err := b.log.Append(text); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	telemetry.LogEntries.Inc()
	return nil
}

// Seq returns the number of successful broadcasts.
func (b *Layer) Seq() uint64 { return b.seq.Load() }

// Peers returns the peer set in sorted order.
func (b *Layer) Peers() []string { return slices.Clone(b.peers) }

// Log returns the layer's log.
func (b *Layer) Log() journal.Log { return b.log }
