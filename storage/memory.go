package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryClient provides an in-memory implementation of the Client interface.
// It keeps hashes and sorted sets in maps guarded by a read-write mutex.
//
// Characteristics:
//   - Data is lost when the process exits
//   - Batches are applied under one lock, so unlike Redis a batch is never
//     observed half applied by other callers
//   - Suitable for tests and single-process deployments
type MemoryClient struct {
	locker sync.RWMutex
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64
}

// NewMemoryClient creates an empty in-memory store.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
	}
}

// HashGetAll implements Client. The returned map is a copy.
func (s *MemoryClient) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	s.locker.RLock()
	defer s.locker.RUnlock()
	return s.hgetall(key), nil
}

// HashSetFields implements Client.
func (s *MemoryClient) HashSetFields(_ context.Context, key string, fields map[string]string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.hset(key, fields)
	return nil
}

// DeleteKey implements Client.
func (s *MemoryClient) DeleteKey(_ context.Context, key string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.del(key)
	return nil
}

// SortedSetAdd implements Client.
func (s *MemoryClient) SortedSetAdd(_ context.Context, key string, score float64, member string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.zadd(key, score, member)
	return nil
}

// SortedSetRemove implements Client.
func (s *MemoryClient) SortedSetRemove(_ context.Context, key, member string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.zrem(key, member)
	return nil
}

// SortedSetRange implements Client. Equal scores are ordered by member, the
// way Redis orders them.
func (s *MemoryClient) SortedSetRange(_ context.Context, key string, order Order) ([]string, error) {
	s.locker.RLock()
	defer s.locker.RUnlock()
	return s.zrange(key, order), nil
}

// Exec implements Client.
func (s *MemoryClient) Exec(_ context.Context, ops []Op) ([]Result, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.apply(ops), nil
}

func (s *MemoryClient) apply(ops []Op) []Result {
	results := make([]Result, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpHashGetAll:
			results[i].Fields = s.hgetall(op.Key)
		case OpHashSet:
			s.hset(op.Key, op.Fields)
		case OpDelete:
			s.del(op.Key)
		case OpSortedSetAdd:
			s.zadd(op.Key, op.Score, op.Member)
		case OpSortedSetRemove:
			s.zrem(op.Key, op.Member)
		}
	}
	return results
}

func (s *MemoryClient) hgetall(key string) map[string]string {
	h := s.hashes[key]
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func (s *MemoryClient) hset(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

func (s *MemoryClient) del(key string) {
	delete(s.hashes, key)
	delete(s.zsets, key)
}

func (s *MemoryClient) zadd(key string, score float64, member string) {
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] = score
}

func (s *MemoryClient) zrem(key, member string) {
	z, ok := s.zsets[key]
	if !ok {
		return
	}
	delete(z, member)
	if len(z) == 0 {
		delete(s.zsets, key)
	}
}

func (s *MemoryClient) zrange(key string, order Order) []string {
	z := s.zsets[key]
	members := make([]string, 0, len(z))
	for m := range z {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if order == Descending {
			a, b = b, a
		}
		if z[a] != z[b] {
			return z[a] < z[b]
		}
		return a < b
	})
	return members
}

var _ Client = (*MemoryClient)(nil)
