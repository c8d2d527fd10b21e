package seed

import (
	"slices"
	"testing"
	"testing/quick"
)

func draw(c *Controller, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = c.IntN(1000)
	}
	return out
}

func TestSameSeedSameSequence(t *testing.T) {
	a := draw(New(42), 64)
	b := draw(New(42), 64)
	if !slices.Equal(a, b) {
		t.Fatalf("sequences differ for the same seed:\n%v\n%v", a, b)
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	a := draw(NewStream(42, 0), 64)
	b := draw(NewStream(42, 1), 64)
	if slices.Equal(a, b) {
		t.Fatal("different streams produced the same sequence")
	}
	if NewStream(42, 1).Seed() != 42 {
		t.Fatal("stream must not change the reported seed")
	}
}

func TestShuffleDeterministic(t *testing.T) {
	f := func(s uint64) bool {
		x := []int{0, 1, 2, 3, 4, 5, 6, 7}
		y := slices.Clone(x)
		cx, cy := New(s), New(s)
		cx.Shuffle(len(x), func(i, j int) { x[i], x[j] = x[j], x[i] })
		cy.Shuffle(len(y), func(i, j int) { y[i], y[j] = y[j], y[i] })
		return slices.Equal(x, y)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		seed   uint64
		want   bool
	}{
		{"default 30", Default, 30, true},
		{"default 31", Default, 31, false},
		{"default 0", Default, 0, true},
		{"every 3", EveryNth(3), 9, true},
		{"every 0", EveryNth(0), 0, false},
		{"never", Never, 10, false},
		{"always", Always, 7, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy(tc.seed); got != tc.want {
				t.Fatalf("policy(%d) = %v, want %v", tc.seed, got, tc.want)
			}
		})
	}
}
