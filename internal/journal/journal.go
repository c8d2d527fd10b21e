// Package journal holds a node's append-only log of observed messages.
//
// Two implementations are provided: Memory for simulations and tests, and
// Bolt, which persists entries in a bbolt database so a node's log survives
// restarts. Entries are never modified or removed.
package journal

import "sync"

// Log is an ordered, append-only record of message texts.
type Log interface {
	Append(entry string) error
	Entries() []string
	Len() int
	Close() error
}

// Memory is an in-process Log.
type Memory struct {
	mu      sync.RWMutex
	entries []string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(entry string) error {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of the log in append order.
func (m *Memory) Entries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
