package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func startTCP(t *testing.T, peers map[string]string) *TCP {
	t.Helper()
	tr := NewTCP("127.0.0.1:0", peers, zaptest.NewLogger(t))
	if err := tr.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func waitFor(t *testing.T, tr *TCP, n int) []Message {
	t.Helper()
	var got []Message
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < n {
		msg, ok, err := tr.Receive()
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			got = append(got, msg)
			continue
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout: received %d of %d messages", len(got), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return got
}

func TestTCPSendReceive(t *testing.T) {
	bob := startTCP(t, nil)
	alice := startTCP(t, map[string]string{"bob": bob.Addr().String()})

	ctx := context.Background()
	alice.ConnectAll(ctx)
	for _, p := range []string{"one", "two", "three"} {
		if err := alice.Send(ctx, "bob", []byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	got := waitFor(t, bob, 3)
	for i, want := range []string{"one", "two", "three"} {
		if string(got[i].Payload) != want {
			t.Fatalf("frame %d = %q, want %q", i, got[i].Payload, want)
		}
	}
}

func TestTCPSkipsEmptyFramesAndKeepsPartialBuffered(t *testing.T) {
	bob := startTCP(t, nil)

	conn, err := net.Dial("tcp", bob.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("\n\nfirst\nsec")); err != nil {
		t.Fatal(err)
	}
	got := waitFor(t, bob, 1)
	if string(got[0].Payload) != "first" {
		t.Fatalf("got %q", got[0].Payload)
	}
	// Polling while the second frame is incomplete must not lose it.
	for i := 0; i < 5; i++ {
		if msg, ok, _ := bob.Receive(); ok {
			t.Fatalf("partial frame delivered early: %q", msg.Payload)
		}
	}
	if _, err := conn.Write([]byte("ond\n")); err != nil {
		t.Fatal(err)
	}
	got = waitFor(t, bob, 1)
	if string(got[0].Payload) != "second" {
		t.Fatalf("got %q, want %q", got[0].Payload, "second")
	}
}

func TestTCPUnknownPeer(t *testing.T) {
	tr := startTCP(t, nil)
	err := tr.Send(context.Background(), "nobody", []byte("x"))
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}

func TestTCPUnreachablePeer(t *testing.T) {
	// Reserve a port and release it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	tr := startTCP(t, map[string]string{"gone": addr})
	if err := tr.Send(context.Background(), "gone", []byte("x")); err == nil {
		t.Fatal("expected a transport error for an unreachable peer")
	}
}

func TestTCPSendAfterClose(t *testing.T) {
	tr := startTCP(t, nil)
	tr.Close()
	if err := tr.Send(context.Background(), "any", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
