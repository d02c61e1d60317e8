// Package storage implements the per-node key/value backing of spec §4.4:
// an InMemoryStore providing the base contract, and a FaultyStore decorator
// layering latency injection, torn writes, sync loss, and read corruption
// on top of it.
package storage

import (
	"bytes"
	"sort"

	"github.com/19h/ftsim/pkg/simtime"
)

// KV is one key/value pair, returned in lexicographic key order by Iter.
type KV struct {
	Key   []byte
	Value []byte
}

// Ack is returned by mutating operations; Latency is the simulated delay
// the operation incurred, for telemetry observation only — it never gates
// dispatch, since storage is purely in-memory and blocking I/O is forbidden
// in handlers (spec §5).
type Ack struct {
	Latency simtime.Duration
}

// Store is the base per-node storage contract. Keys are opaque byte
// strings; ordering is lexicographic.
type Store interface {
	Get(key []byte) (value []byte, ok bool, err error)
	Put(key, value []byte) (Ack, error)
	Delete(key []byte) (Ack, error)
	Sync() (Ack, error)
	Iter(prefix []byte) ([]KV, error)
}

// InMemoryStore implements Store directly, with no fault behaviour: every
// write is immediately durable. Entries are kept in a sorted slice rather
// than a map so that Iter's ordering is deterministic without depending on
// Go's unspecified map iteration order (spec §9 "Hash-map iteration").
type InMemoryStore struct {
	entries []KV
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) search(key []byte) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].Key, key) >= 0
	})
	if i < len(s.entries) && bytes.Equal(s.entries[i].Key, key) {
		return i, true
	}
	return i, false
}

// Get returns the value for key, if present.
func (s *InMemoryStore) Get(key []byte) ([]byte, bool, error) {
	i, found := s.search(key)
	if !found {
		return nil, false, nil
	}
	return append([]byte(nil), s.entries[i].Value...), true, nil
}

// Put writes key = value, overwriting any prior value.
func (s *InMemoryStore) Put(key, value []byte) (Ack, error) {
	kv := KV{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)}
	i, found := s.search(key)
	if found {
		s.entries[i] = kv
		return Ack{}, nil
	}
	s.entries = append(s.entries, KV{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = kv
	return Ack{}, nil
}

// Delete removes key, if present.
func (s *InMemoryStore) Delete(key []byte) (Ack, error) {
	i, found := s.search(key)
	if !found {
		return Ack{}, nil
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return Ack{}, nil
}

// Sync is a no-op for InMemoryStore: writes are already durable. The
// FaultyStore decorator is what gives Sync meaning.
func (s *InMemoryStore) Sync() (Ack, error) {
	return Ack{}, nil
}

// Iter returns every entry whose key has the given prefix, in lexicographic
// key order.
func (s *InMemoryStore) Iter(prefix []byte) ([]KV, error) {
	start := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].Key, prefix) >= 0
	})
	var out []KV
	for i := start; i < len(s.entries); i++ {
		if !bytes.HasPrefix(s.entries[i].Key, prefix) {
			break
		}
		out = append(out, KV{
			Key:   append([]byte(nil), s.entries[i].Key...),
			Value: append([]byte(nil), s.entries[i].Value...),
		})
	}
	return out, nil
}
