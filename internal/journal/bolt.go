package journal

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// Bolt is a Log persisted in a bbolt database. Keys are the big-endian
// entry index, so cursor order is append order.
type Bolt struct {
	db *bolt.DB

	mu   sync.Mutex
	next uint64
}

// OpenBolt opens (or creates) a journal database at path. A reopened
// journal continues after its last entry.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	var next uint64
	err = db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(bucketEntries)
		if err != nil {
			return err
		}
		if k, _ := bkt.Cursor().Last(); k != nil {
			next = binary.BigEndian.Uint64(k) + 1
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init %s: %w", path, err)
	}
	return &Bolt{db: db, next: next}, nil
}

func (b *Bolt) Append(entry string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var key [8]byte
	binary.BigEndian.PutUint64(key[:], b.next)
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put(key[:], []byte(entry))
	})
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	b.next++
	return nil
}

// Entries returns every entry in append order. Read errors yield the
// entries read so far.
func (b *Bolt) Entries() []string {
	var out []string
	b.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		return tx.Bucket(bucketEntries).ForEach(func(_, v []byte) error {
			out = append(out, string(v))
			return nil
		})
	})
	return out
}

func (b *Bolt) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.next)
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
