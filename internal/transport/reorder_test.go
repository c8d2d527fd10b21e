package transport

import (
	"bytes"
	"slices"
	"sort"
	"testing"
	"testing/quick"

	"github.com/jdeinum/simulation-testing/internal/seed"
)

var names = []string{"Alice", "Bob", "Charlie", "David", "Eve"}

func newTestReorderer(s uint64) *Reorderer {
	return NewReorderer(seed.New(s), seed.Default)
}

func injectAll(r *Reorderer, items []string) {
	for _, it := range items {
		r.Inject(it, []byte(it))
	}
}

func payloads(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Payload)
	}
	return out
}

func TestFIFOWhenSeedNotDivisible(t *testing.T) {
	r := newTestReorderer(31)
	injectAll(r, names)

	got := payloads(r.Drain())
	if !slices.Equal(got, names) {
		t.Fatalf("seed 31: got %v, want %v", got, names)
	}
	if r.Shuffles() != 0 {
		t.Fatalf("seed 31 shuffled %d times", r.Shuffles())
	}
}

func TestShuffleWhenSeedDivisible(t *testing.T) {
	r := newTestReorderer(30)
	injectAll(r, names)

	got := payloads(r.Drain())
	sorted := slices.Clone(got)
	sort.Strings(sorted)
	want := slices.Clone(names)
	sort.Strings(want)
	if !slices.Equal(sorted, want) {
		t.Fatalf("seed 30: %v is not a permutation of %v", got, names)
	}
	if r.Shuffles() != len(names) {
		t.Fatalf("expected a reshuffle per inject, got %d", r.Shuffles())
	}
}

func TestShuffleIsReproducible(t *testing.T) {
	first := newTestReorderer(30)
	second := newTestReorderer(30)
	injectAll(first, names)
	injectAll(second, names)

	a, b := first.Drain(), second.Drain()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].From != b[i].From || !bytes.Equal(a[i].Payload, b[i].Payload) {
			t.Fatalf("position %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestOrderPreservedProperty(t *testing.T) {
	f := func(s uint64, items []string) bool {
		if s%10 == 0 {
			s++
		}
		r := newTestReorderer(s)
		injectAll(r, items)
		return slices.Equal(payloads(r.Drain()), items)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestShuffleProperty(t *testing.T) {
	f := func(s uint64, items []string) bool {
		s -= s % 10
		a, b := newTestReorderer(s), newTestReorderer(s)
		injectAll(a, items)
		injectAll(b, items)
		got, again := payloads(a.Drain()), payloads(b.Drain())
		if !slices.Equal(got, again) {
			return false
		}
		x, y := slices.Clone(got), slices.Clone(items)
		sort.Strings(x)
		sort.Strings(y)
		return slices.Equal(x, y)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestReceiveOnEmptyQueue(t *testing.T) {
	r := newTestReorderer(30)
	for i := 0; i < 3; i++ {
		msg, ok, err := r.Receive()
		if err != nil {
			t.Fatalf("Receive on empty queue returned error: %v", err)
		}
		if ok {
			t.Fatalf("Receive on empty queue returned %v", msg)
		}
	}
	if r.Len() != 0 || r.Shuffles() != 0 {
		t.Fatal("empty receive had side effects")
	}
}

func TestInjectCopiesPayload(t *testing.T) {
	r := newTestReorderer(1)
	buf := []byte("original")
	r.Inject("a", buf)
	copy(buf, "mutated!")

	msg, ok, _ := r.Receive()
	if !ok || string(msg.Payload) != "original" {
		t.Fatalf("queued payload changed: %q", msg.Payload)
	}
}

func TestEmptyPayloadIsDelivered(t *testing.T) {
	r := newTestReorderer(1)
	r.Inject("a", nil)
	msg, ok, err := r.Receive()
	if err != nil || !ok {
		t.Fatalf("empty payload not delivered: ok=%v err=%v", ok, err)
	}
	if msg.From != "a" || len(msg.Payload) != 0 {
		t.Fatalf("unexpected message %v", msg)
	}
}
