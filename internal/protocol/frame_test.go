package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFrameAppendsDelimiter(t *testing.T) {
	payload := []byte("hello")
	got := Frame(payload)
	if !bytes.Equal(got, []byte("hello\n")) {
		t.Fatalf("Frame = %q", got)
	}
	if string(payload) != "hello" {
		t.Fatal("Frame modified its input")
	}
	if !bytes.Equal(Frame(nil), []byte{'\n'}) {
		t.Fatal("empty payload should frame to a lone delimiter")
	}
}

func TestScannerSplitsFrames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "a\n", []string{"a"}},
		{"several", "a\nbb\nccc\n", []string{"a", "bb", "ccc"}},
		{"empty frames skipped", "\n\na\n\nb\n", []string{"a", "b"}},
		{"partial tail dropped", "a\nincomplete", []string{"a"}},
		{"carriage return kept", "a\r\n", []string{"a\r"}},
		{"nothing", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScanner(strings.NewReader(tc.input))
			var got []string
			for s.Scan() {
				got = append(got, string(s.Bytes()))
			}
			if err := s.Err(); err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("frame %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestScannerRoundTripsFramedPayloads(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("one"), {0xff, 0xfe}, []byte("three  ")}
	for _, p := range payloads {
		buf.Write(Frame(p))
	}
	s := NewScanner(&buf)
	for i, want := range payloads {
		if !s.Scan() {
			t.Fatalf("missing frame %d", i)
		}
		if !bytes.Equal(s.Bytes(), want) {
			t.Fatalf("frame %d: got %q, want %q", i, s.Bytes(), want)
		}
	}
	if s.Scan() {
		t.Fatal("unexpected extra frame")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := NewMessage("node#1", 7)
	id, seq, err := ParseMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if id != "node#1" || seq != 7 {
		t.Fatalf("ParseMessage(%q) = %q, %d", msg, id, seq)
	}
}

func TestParseMessageRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "#3", "node", "node#x", "node#-1"} {
		if _, _, err := ParseMessage(s); !errors.Is(err, ErrMalformed) {
			t.Fatalf("ParseMessage(%q) err = %v, want ErrMalformed", s, err)
		}
	}
}
