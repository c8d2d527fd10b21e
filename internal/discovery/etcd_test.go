package discovery

import (
	"maps"
	"testing"

	"go.etcd.io/etcd/api/v3/mvccpb"
)

func TestPeersFromKVs(t *testing.T) {
	kvs := []*mvccpb.KeyValue{
		{Key: []byte(Prefix + "n1"), Value: []byte("10.0.0.1:7000")},
		{Key: []byte(Prefix + "n2"), Value: []byte("10.0.0.2:7000")},
		{Key: []byte(Prefix + "self"), Value: []byte("10.0.0.3:7000")},
		{Key: []byte(Prefix + "n4"), Value: nil},
		{Key: []byte(Prefix), Value: []byte("10.0.0.5:7000")},
	}
	got := peersFromKVs(kvs, "self")
	want := map[string]string{"n1": "10.0.0.1:7000", "n2": "10.0.0.2:7000"}
	if !maps.Equal(got, want) {
		t.Fatalf("peers = %v, want %v", got, want)
	}
}

func TestMergeStaticWins(t *testing.T) {
	static := map[string]string{"a": "static:1"}
	discovered := map[string]string{"a": "etcd:1", "b": "etcd:2"}
	got := Merge(static, discovered)
	want := map[string]string{"a": "static:1", "b": "etcd:2"}
	if !maps.Equal(got, want) {
		t.Fatalf("merged = %v, want %v", got, want)
	}
	if discovered["a"] != "etcd:1" {
		t.Fatal("Merge modified its input")
	}
}

func TestMergeNil(t *testing.T) {
	got := Merge(map[string]string{"a": "x"}, nil)
	if !maps.Equal(got, map[string]string{"a": "x"}) {
		t.Fatalf("merged = %v", got)
	}
	if got := Merge(nil, nil); got == nil || len(got) != 0 {
		t.Fatalf("merged = %v, want empty map", got)
	}
}
