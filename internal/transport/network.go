package transport

import (
	"context"
	"fmt"
	"sync"
)

// Network connects several simulated endpoints in one process. Each
// endpoint's inbound side is its own Reorderer; Send injects into the
// destination's queue with the sender as origin.
type Network struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

func NewNetwork() *Network {
	return &Network{endpoints: make(map[string]*Endpoint)}
}

// Join registers id with inbound queue inbox and returns its endpoint.
func (n *Network) Join(id string, inbox *Reorderer) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.endpoints[id]; ok {
		return nil, fmt.Errorf("transport: endpoint %q already joined", id)
	}
	ep := &Endpoint{id: id, net: n, inbox: inbox}
	n.endpoints[id] = ep
	return ep, nil
}

func (n *Network) lookup(id string) (*Endpoint, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ep, ok := n.endpoints[id]
	return ep, ok
}

// Endpoint is one node's view of a Network.
type Endpoint struct {
	id    string
	net   *Network
	inbox *Reorderer
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Send(ctx context.Context, peer string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, ok := e.net.lookup(peer)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPeer, peer)
	}
	dst.inbox.Inject(e.id, payload)
	return nil
}

func (e *Endpoint) Receive() (Message, bool, error) {
	return e.inbox.Receive()
}

// Pending returns the number of messages waiting for this endpoint.
func (e *Endpoint) Pending() int { return e.inbox.Len() }
