// Package sim runs a cluster of nodes over a seeded in-process network,
// one scheduled event at a time, and records what happened.
//
// Every source of nondeterminism is derived from Options.Seed: each node's
// inbound queue owns a controller on its own stream, and the scheduler
// that picks the next node and action owns another. Sends within a
// broadcast go out one at a time in peer order. Running the same Options
// twice therefore yields the same Trace and the same Digest, which is what
// makes a failing seed replayable.
package sim

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/jdeinum/simulation-testing/internal/broadcast"
	"github.com/jdeinum/simulation-testing/internal/node"
	"github.com/jdeinum/simulation-testing/internal/seed"
	"github.com/jdeinum/simulation-testing/internal/transport"
)

// Options configures one simulation run.
type Options struct {
	Seed   uint64
	Nodes  int
	Steps  int
	FailAt uint64      // forwarded to every node; 0 disables fault injection
	Policy seed.Policy // queue reorder policy; nil means seed.Default
	Logger *zap.Logger
}

type EventKind string

const (
	EventBroadcast EventKind = "broadcast"
	EventFailed    EventKind = "broadcast-failed"
	EventDeliver   EventKind = "deliver"
	EventDrop      EventKind = "drop"
	EventCrash     EventKind = "crash"
)

// Event is one entry of a run's trace.
type Event struct {
	Step int
	Node string
	Kind EventKind
	Text string
}

func (e Event) String() string {
	return fmt.Sprintf("%d %s %s %q", e.Step, e.Node, e.Kind, e.Text)
}

// Result is the outcome of a run.
type Result struct {
	Seed   uint64
	Trace  []Event
	Logs   map[string][]string
	Digest string
	// Crash is set when a node hit its injected fault. The run stops at
	// that step; replay it with the same Options.
	Crash error
}

// NodeID names the i-th node of a cluster.
func NodeID(i int) string { return fmt.Sprintf("n%d", i) }

// Run executes opts.Steps scheduled events.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Nodes < 1 {
		return nil, errors.New("sim: need at least one node")
	}
	if opts.Steps < 0 {
		return nil, errors.New("sim: negative step count")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	nodes, err := build(opts, logger)
	if err != nil {
		return nil, err
	}
	sched := seed.NewStream(opts.Seed, uint64(opts.Nodes))
	res := &Result{Seed: opts.Seed, Logs: make(map[string][]string, len(nodes))}

steps:
	for step := 0; step < opts.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := nodes[sched.IntN(len(nodes))]

		if sched.IntN(2) == 0 {
			msg, err := n.Tick(ctx)
			switch {
			case errors.Is(err, node.ErrFaultInjected):
				res.add(step, n.ID(), EventBroadcast, msg)
				res.add(step, n.ID(), EventCrash, err.Error())
				res.Crash = fmt.Errorf("sim: seed %d step %d: %w", opts.Seed, step, err)
				logger.Error("node crashed", zap.Uint64("seed", opts.Seed), zap.Int("step", step), zap.Error(err))
				break steps
			case err != nil:
				res.add(step, n.ID(), EventFailed, msg)
			default:
				res.add(step, n.ID(), EventBroadcast, msg)
			}
			continue
		}

		observed, dropped := n.Poll()
		for _, text := range observed {
			res.add(step, n.ID(), EventDeliver, text)
		}
		if dropped > 0 {
			res.add(step, n.ID(), EventDrop, fmt.Sprint(dropped))
		}
	}

	for _, n := range nodes {
		res.Logs[n.ID()] = n.Log()
	}
	res.Digest = Digest(res.Trace)
	return res, nil
}

func build(opts Options, logger *zap.Logger) ([]*node.Node, error) {
	ids := make([]string, opts.Nodes)
	for i := range ids {
		ids[i] = NodeID(i)
	}

	network := transport.NewNetwork()
	nodes := make([]*node.Node, 0, opts.Nodes)
	for i, id := range ids {
		inbox := transport.NewReorderer(seed.NewStream(opts.Seed, uint64(i)), opts.Policy)
		ep, err := network.Join(id, inbox)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
		peers := make([]string, 0, len(ids)-1)
		for _, p := range ids {
			if p != id {
				peers = append(peers, p)
			}
		}
		layer := broadcast.New(peers, ep,
			broadcast.WithFanout(1),
			broadcast.WithLogger(logger))
		n, err := node.New(node.Config{ID: id, FailAt: opts.FailAt, Logger: logger}, layer)
		if err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (r *Result) add(step int, id string, kind EventKind, text string) {
	r.Trace = append(r.Trace, Event{Step: step, Node: id, Kind: kind, Text: text})
}

// Digest fingerprints a trace with BLAKE2b-256. Equal traces have equal
// digests.
func Digest(trace []Event) string {
	h, _ := blake2b.New256(nil)
	for _, e := range trace {
		h.Write([]byte(e.String()))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
