// Package discovery publishes and looks up node addresses in etcd.
package discovery

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Prefix is the etcd key prefix under which nodes register.
const Prefix = "/simtest/nodes/"

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// Register publishes id -> addr under a lease of ttl seconds and keeps the
// lease alive until cancel is called. Revoke the returned lease to remove
// the key immediately.
func Register(ctx context.Context, cli *clientv3.Client, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("discovery: grant: %w", err)
	}
	if _, err := cli.Put(ctx, Prefix+id, addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("discovery: put %s: %w", id, err)
	}

	kctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(kctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("discovery: keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
	}()
	return lease.ID, cancel, nil
}

// Peers lists every registered node except self.
func Peers(ctx context.Context, cli *clientv3.Client, self string) (map[string]string, error) {
	resp, err := cli.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("discovery: list: %w", err)
	}
	return peersFromKVs(resp.Kvs, self), nil
}

func peersFromKVs(kvs []*mvccpb.KeyValue, self string) map[string]string {
	peers := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		id := strings.TrimPrefix(string(kv.Key), Prefix)
		if id == "" || id == self || len(kv.Value) == 0 {
			continue
		}
		peers[id] = string(kv.Value)
	}
	return peers
}

// Merge combines a static peer map with discovered peers. Static entries
// win on conflict.
func Merge(static, discovered map[string]string) map[string]string {
	out := maps.Clone(discovered)
	if out == nil {
		out = make(map[string]string, len(static))
	}
	maps.Copy(out, static)
	return out
}
