package kv

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]map[string][]byte
	order   map[string][]Entry
	seq     map[string]map[string]int64
	nextSeq map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]map[string][]byte),
		order:   make(map[string][]Entry),
		seq:     make(map[string]map[string]int64),
		nextSeq: make(map[string]int64),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals, ok := s.values[collection]
	if !ok {
		return nil, false, nil
	}
	value, ok := vals[id]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, ok := s.values[collection]
	if !ok {
		vals = make(map[string][]byte)
		s.values[collection] = vals
		s.seq[collection] = make(map[string]int64)
	}

	if _, exists := vals[id]; !exists {
		s.nextSeq[collection]++
		seq := s.nextSeq[collection]
		s.seq[collection][id] = seq
		s.order[collection] = append(s.order[collection], Entry{Seq: seq, ID: id})
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	vals[id] = stored
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, ok := s.values[collection]
	if !ok {
		return false, nil
	}
	if _, exists := vals[id]; !exists {
		return false, nil
	}
	delete(vals, id)

	seq := s.seq[collection][id]
	delete(s.seq[collection], id)

	entries := s.order[collection]
	for i, e := range entries {
		if e.Seq == seq {
			s.order[collection] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStore) Keys(ctx context.Context, collection string, afterSeq int64, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.order[collection] {
		if e.Seq <= afterSeq {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.values[collection])), nil
}
