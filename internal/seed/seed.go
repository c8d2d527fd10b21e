// Package seed owns the pseudo-random source that drives every random
// decision of a simulation run.
//
// A Controller is created once from a u64 seed and handed to exactly one
// consumer. The same seed always yields the same sequence of decisions, on
// every run and every machine, so a failing run can be replayed from the
// seed alone.
package seed

import (
	"fmt"
	"math/rand/v2"
)

// Controller is a seeded random source. It is not safe for concurrent use
// and must not be shared between consumers.
type Controller struct {
	seed uint64
	rng  *rand.Rand
}

// New returns a Controller on stream 0 of seed.
func New(seed uint64) *Controller {
	return NewStream(seed, 0)
}

// NewStream returns a Controller for seed on an independent stream. Two
// controllers with the same seed and different streams produce unrelated
// sequences; the policy still sees the same seed.
func NewStream(seed, stream uint64) *Controller {
	return &Controller{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, stream)),
	}
}

// Seed returns the value the controller was created with.
func (c *Controller) Seed() uint64 { return c.seed }

// Shuffle permutes n elements through swap.
func (c *Controller) Shuffle(n int, swap func(i, j int)) {
	c.rng.Shuffle(n, swap)
}

// IntN returns a value in [0, n). It panics if n <= 0.
func (c *Controller) IntN(n int) int {
	return c.rng.IntN(n)
}

func (c *Controller) String() string {
	return fmt.Sprintf("seed(%d)", c.seed)
}

// Policy decides from the seed alone whether a run reorders its queues.
type Policy func(seed uint64) bool

// EveryNth reorders when the seed is a multiple of n. n == 0 never reorders.
func EveryNth(n uint64) Policy {
	return func(s uint64) bool {
		return n != 0 && s%n == 0
	}
}

// Never keeps every queue in FIFO order.
func Never(uint64) bool { return false }

// Always reorders on every inject.
func Always(uint64) bool { return true }

// Default is the reference policy: reorder when seed % 10 == 0.
var Default = EveryNth(10)
