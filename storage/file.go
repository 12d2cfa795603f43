package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/xyzj/toolbox/db"
	"github.com/xyzj/toolbox/json"
)

// fileRecord is the on-disk form of one key. Exactly one of the two maps is set.
type fileRecord struct {
	Hash map[string]string  `json:"h,omitempty"`
	ZSet map[string]float64 `json:"z,omitempty"`
}

// FileClient is a Client backed by a BoltDB file. Reads are served from an
// in-memory copy loaded at start; every mutation rewrites the keys it touched.
//
// It is meant for single-process use: two processes sharing a file do not see
// each other's writes.
type FileClient struct {
	locker sync.Mutex // serializes mutate+persist
	mem    *MemoryClient
	f      string
	db     *db.BoltDB
}

// NewFileClient opens (or creates) the BoltDB file at filename and loads its
// content into memory.
//
// Parameters:
//   - filename: Path of the BoltDB file, created when missing
//
// Returns:
//   - *FileClient: A Client persisting every mutation to filename
//   - error: An error if the file cannot be opened or holds an unreadable record
func NewFileClient(filename string) (*FileClient, error) {
	d, err := db.NewBolt(filename)
	if err != nil {
		return nil, err
	}
	s := &FileClient{
		mem: NewMemoryClient(),
		f:   filename,
		db:  d,
	}
	var loadErr error
	s.db.ForEach(func(k, v string) error {
		rec := fileRecord{}
		if err := json.UnmarshalFromString(v, &rec); err != nil {
			loadErr = fmt.Errorf("load %s from %s: %w", k, filename, err)
			return err
		}
		if len(rec.Hash) > 0 {
			s.mem.hashes[k] = rec.Hash
		}
		if len(rec.ZSet) > 0 {
			s.mem.zsets[k] = rec.ZSet
		}
		return nil
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return s, nil
}

// HashGetAll implements Client.
func (s *FileClient) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.mem.HashGetAll(ctx, key)
}

// HashSetFields implements Client.
func (s *FileClient) HashSetFields(ctx context.Context, key string, fields map[string]string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.mem.HashSetFields(ctx, key, fields)
	return s.persist("hset", key)
}

// DeleteKey implements Client.
func (s *FileClient) DeleteKey(ctx context.Context, key string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.mem.DeleteKey(ctx, key)
	return s.persist("del", key)
}

// SortedSetAdd implements Client.
func (s *FileClient) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.mem.SortedSetAdd(ctx, key, score, member)
	return s.persist("zadd", key)
}

// SortedSetRemove implements Client.
func (s *FileClient) SortedSetRemove(ctx context.Context, key, member string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.mem.SortedSetRemove(ctx, key, member)
	return s.persist("zrem", key)
}

// SortedSetRange implements Client.
func (s *FileClient) SortedSetRange(ctx context.Context, key string, order Order) ([]string, error) {
	return s.mem.SortedSetRange(ctx, key, order)
}

// Exec implements Client. Ops are applied in memory first, then each mutating
// op reports whether its key could be written to the file.
func (s *FileClient) Exec(ctx context.Context, ops []Op) ([]Result, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	results, _ := s.mem.Exec(ctx, ops)
	for i, op := range ops {
		if op.Kind == OpHashGetAll {
			continue
		}
		results[i].Err = s.persist(op.Kind.String(), op.Key)
	}
	return results, nil
}

func (s *FileClient) persist(op, key string) error {
	s.mem.locker.RLock()
	rec := fileRecord{
		Hash: s.mem.hashes[key],
		ZSet: s.mem.zsets[key],
	}
	if len(rec.Hash) == 0 && len(rec.ZSet) == 0 {
		s.mem.locker.RUnlock()
		s.db.Delete(key)
		return nil
	}
	xs, err := json.MarshalToString(rec)
	s.mem.locker.RUnlock()
	if err != nil {
		return unavailable(op+" "+key, err)
	}
	return unavailable(op+" "+key, s.db.Write(key, xs))
}

var _ Client = (*FileClient)(nil)
