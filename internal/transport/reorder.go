package transport

import (
	"bytes"
	"sync"

	"github.com/jdeinum/simulation-testing/internal/seed"
	"github.com/jdeinum/simulation-testing/internal/telemetry"
)

// Reorderer is the pending queue of a simulated transport. Messages are
// injected at the tail and received from the head. When the seed policy
// holds, every inject reshuffles the whole queue with the owned RNG.
//
// For a fixed seed, a fixed sequence of Inject calls yields the same queue
// contents and order on every run.
type Reorderer struct {
	mu       sync.Mutex
	rng      *seed.Controller
	reorder  bool
	queue    []Message
	shuffles int
}

// NewReorderer takes ownership of rng. A nil policy means seed.Default.
func NewReorderer(rng *seed.Controller, policy seed.Policy) *Reorderer {
	if policy == nil {
		policy = seed.Default
	}
	return &Reorderer{
		rng:     rng,
		reorder: policy(rng.Seed()),
	}
}

// Seed returns the seed of the owned RNG.
func (r *Reorderer) Seed() uint64 { return r.rng.Seed() }

// Reorders reports whether the seed policy reshuffles this queue.
func (r *Reorderer) Reorders() bool { return r.reorder }

// Inject appends (origin, payload) to the queue. payload is copied.
func (r *Reorderer) Inject(origin string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue = append(r.queue, Message{From: origin, Payload: bytes.Clone(payload)})
	telemetry.PendingMessages.Inc()

	if r.reorder {
		r.rng.Shuffle(len(r.queue), func(i, j int) {
			r.queue[i], r.queue[j] = r.queue[j], r.queue[i]
		})
		r.shuffles++
		telemetry.ShufflesTotal.Inc()
	}
}

// Receive pops the head of the queue. It never blocks and never fails.
func (r *Reorderer) Receive() (Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return Message{}, false, nil
	}
	msg := r.queue[0]
	r.queue[0] = Message{}
	r.queue = r.queue[1:]
	telemetry.PendingMessages.Dec()
	return msg, true, nil
}

// Drain receives every pending message in delivery order.
func (r *Reorderer) Drain() []Message {
	var out []Message
	for {
		msg, ok, _ := r.Receive()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

// Len returns the number of pending messages.
func (r *Reorderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Shuffles returns how many times the queue was reshuffled.
func (r *Reorderer) Shuffles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shuffles
}
