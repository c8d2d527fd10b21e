// Package node implements the broadcast node driver.
//
// Design:
//   - One goroutine runs the node loop; it multiplexes the broadcast timer
//     and the receive poll with a single select, first ready wins.
//   - Each broadcast tick builds "<id>#<seq>", fans it out through the
//     broadcast layer and records it locally on success. A failed
//     broadcast is logged and the loop carries on.
//   - Each poll tick drains whatever the transport has buffered. Receive
//     never blocks, so a tick that wins the race cannot drop inbound bytes.
//   - Tick and Poll are exported so a simulator can drive nodes step by
//     step without timers.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jdeinum/simulation-testing/internal/broadcast"
	"github.com/jdeinum/simulation-testing/internal/protocol"
)

const (
	defaultInterval     = 3 * time.Second
	defaultPollInterval = 50 * time.Millisecond

	// DefaultWarmUp gives a network transport time to reach its peers
	// before the first broadcast.
	DefaultWarmUp = 5 * time.Second
)

// Config configures a Node.
type Config struct {
	ID           string
	Interval     time.Duration // broadcast interval; defaults to defaultInterval
	WarmUp       time.Duration // delay before the first tick; 0 = none
	PollInterval time.Duration // receive poll interval; defaults to defaultPollInterval
	FailAt       uint64        // test-only fault injection threshold; 0 = disabled
	Logger       *zap.Logger
}

// Node drives one broadcast layer.
type Node struct {
	cfg    Config
	layer  *broadcast.Layer
	logger *zap.Logger
}

// New creates a Node over layer.
func New(cfg Config, layer *broadcast.Layer) (*Node, error) {
	if cfg.ID == "" {
		return nil, errors.New("node: empty id")
	}
	if layer == nil {
		return nil, errors.New("node: nil broadcast layer")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Node{
		cfg:    cfg,
		layer:  layer,
		logger: cfg.Logger.Named("node").With(zap.String("node", cfg.ID)),
	}, nil
}

func (n *Node) ID() string { return n.cfg.ID }

// Layer returns the node's broadcast layer.
func (n *Node) Layer() *broadcast.Layer { return n.layer }

// Log returns a copy of everything the node has observed, in order.
func (n *Node) Log() []string { return n.layer.Log().Entries() }

// Run warms up, then loops until ctx is cancelled. Cancellation is a
// graceful stop and returns nil. Only an injected fault ends the loop with
// an error.
func (n *Node) Run(ctx context.Context) error {
	if n.cfg.WarmUp > 0 {
		n.logger.Info("warming up", zap.Duration("delay", n.cfg.WarmUp))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(n.cfg.WarmUp):
		}
	}
	n.logger.Info("running",
		zap.Duration("interval", n.cfg.Interval),
		zap.Strings("peers", n.layer.Peers()))

	bt := time.NewTicker(n.cfg.Interval)
	defer bt.Stop()
	pt := time.NewTicker(n.cfg.PollInterval)
	defer pt.Stop()

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("stopping", zap.Int("log", n.layer.Log().Len()))
			return nil
		case <-pt.C:
			n.Poll()
		case <-bt.C:
			if _, err := n.Tick(ctx); err != nil {
				if errors.Is(err, ErrFaultInjected) {
					return err
				}
				n.logger.Warn("broadcast failed", zap.Error(err))
			}
		}
	}
}

// Tick broadcasts the next local message and records it on success. It
// returns the message text. Broadcast failures are returned as-is and are
// not fatal; see ErrFaultInjected for the one error that is.
func (n *Node) Tick(ctx context.Context) (string, error) {
	msg := protocol.NewMessage(n.cfg.ID, n.layer.Seq())
	if err := n.layer.Broadcast(ctx, []byte(msg)); err != nil {
		return msg, fmt.Errorf("node: broadcast %q: %w", msg, err)
	}
	if err := n.layer.Record(msg); err != nil {
		return msg, fmt.Errorf("node: %w", err)
	}
	n.logger.Debug("sent", zap.String("msg", msg))
	return msg, n.checkFault()
}

// Poll drains every message the transport has buffered. It returns the
// texts appended to the log and the number of messages dropped as
// undecodable.
func (n *Node) Poll() (observed []string, dropped int) {
	for {
		payload, ok, err := n.layer.Receive()
		switch {
		case errors.Is(err, broadcast.ErrDecode):
			dropped++
			n.logger.Warn("dropping message", zap.Error(err))
			continue
		case err != nil:
			n.logger.Error("receive", zap.Error(err))
			return observed, dropped
		case !ok:
			return observed, dropped
		}
		text := strings.TrimSpace(string(payload))
		observed = append(observed, text)
		n.logger.Debug("received", zap.String("msg", text))
	}
}
