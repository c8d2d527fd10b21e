package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jdeinum/simulation-testing/internal/protocol"
)

const defaultDialTimeout = 5 * time.Second

// TCP implements Transport over raw TCP connections with newline framing.
// Outbound connections are dialed per peer id and used only for writing;
// accepted connections are read into an inbound buffer that Receive polls.
type TCP struct {
	listenAddr  string
	peers       map[string]string // id → addr
	logger      *zap.Logger
	dialTimeout time.Duration

	listener net.Listener
	closed   atomic.Bool
	wg       sync.WaitGroup

	mu       sync.RWMutex
	conns    map[string]*peerConn // id → outbound conn
	accepted map[net.Conn]struct{}

	inMu    sync.Mutex
	inbound []Message
}

// peerConn serialises writes to one peer. Its lock is held for a single
// frame write, so a slow peer does not stall the others.
type peerConn struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewTCP creates a TCP transport listening on listenAddr that can send to
// the given peers (id → host:port). A nil logger discards output.
func NewTCP(listenAddr string, peers map[string]string, logger *zap.Logger) *TCP {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := make(map[string]string, len(peers))
	for id, addr := range peers {
		p[id] = addr
	}
	return &TCP{
		listenAddr:  listenAddr,
		peers:       p,
		logger:      logger.Named("tcp"),
		dialTimeout: defaultDialTimeout,
		conns:       make(map[string]*peerConn),
		accepted:    make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting peer connections.
func (t *TCP) Start() error {
	ln, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", t.listenAddr, err)
	}
	t.listener = ln
	t.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (t *TCP) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// ConnectAll dials every configured peer once. Failures are logged; Send
// retries the dial for peers that were not reachable yet.
func (t *TCP) ConnectAll(ctx context.Context) {
	ids := make([]string, 0, len(t.peers))
	for id := range t.peers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if _, err := t.connect(ctx, id); err != nil {
			t.logger.Warn("connect failed", zap.String("peer", id), zap.Error(err))
			continue
		}
		t.logger.Info("connected", zap.String("peer", id), zap.String("addr", t.peers[id]))
	}
}

func (t *TCP) connect(ctx context.Context, id string) (*peerConn, error) {
	t.mu.RLock()
	pc, ok := t.conns[id]
	t.mu.RUnlock()
	if ok {
		return pc, nil
	}

	addr, ok := t.peers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeer, id)
	}
	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s (%s): %w", id, addr, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.conns[id]; ok {
		conn.Close()
		return existing, nil
	}
	pc = &peerConn{conn: conn}
	t.conns[id] = pc
	return pc, nil
}

// Send writes payload and a delimiter to peer. An unknown id fails with
// ErrUnknownPeer; a peer that is not connected is dialed once.
func (t *TCP) Send(ctx context.Context, peer string, payload []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	pc, err := t.connect(ctx, peer)
	if err != nil {
		return err
	}

	frame := protocol.Frame(payload)
	pc.mu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		pc.conn.SetWriteDeadline(deadline) //nolint:errcheck
	} else {
		pc.conn.SetWriteDeadline(time.Time{}) //nolint:errcheck
	}
	_, err = pc.conn.Write(frame)
	pc.mu.Unlock()

	if err != nil {
		t.dropConn(peer, pc)
		return fmt.Errorf("transport: send to %s: %w", peer, err)
	}
	return nil
}

// Receive pops the oldest buffered frame without blocking.
func (t *TCP) Receive() (Message, bool, error) {
	t.inMu.Lock()
	defer t.inMu.Unlock()
	if len(t.inbound) == 0 {
		return Message{}, false, nil
	}
	msg := t.inbound[0]
	t.inbound[0] = Message{}
	t.inbound = t.inbound[1:]
	return msg, true, nil
}

// Close shuts down the listener and every peer connection, then waits for
// the read loops to exit.
func (t *TCP) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t.listener != nil {
		t.listener.Close()
	}
	t.mu.Lock()
	for id, pc := range t.conns {
		pc.conn.Close()
		delete(t.conns, id)
	}
	for c := range t.accepted {
		c.Close()
	}
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}

func (t *TCP) dropConn(id string, pc *peerConn) {
	t.mu.Lock()
	if t.conns[id] == pc {
		delete(t.conns, id)
	}
	t.mu.Unlock()
	pc.conn.Close()
}

func (t *TCP) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if !t.closed.Load() {
				t.logger.Error("accept", zap.Error(err))
			}
			return
		}
		t.mu.Lock()
		if t.closed.Load() {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.accepted[conn] = struct{}{}
		t.mu.Unlock()

		t.logger.Debug("accepted", zap.String("remote", conn.RemoteAddr().String()))
		t.wg.Add(1)
		go t.readLoop(conn)
	}
}

func (t *TCP) readLoop(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer func() {
		conn.Close()
		t.mu.Lock()
		delete(t.accepted, conn)
		t.mu.Unlock()
		t.wg.Done()
	}()

	s := protocol.NewScanner(conn)
	for s.Scan() {
		msg := Message{From: remote, Payload: bytes.Clone(s.Bytes())}
		t.inMu.Lock()
		t.inbound = append(t.inbound, msg)
		t.inMu.Unlock()
	}
	if err := s.Err(); err != nil && !t.closed.Load() {
		t.logger.Warn("read", zap.String("remote", remote), zap.Error(err))
		return
	}
	t.logger.Debug("connection closed", zap.String("remote", remote))
}
