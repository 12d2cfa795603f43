// Package storage provides the key-value operations the chat store is built on:
// hashes for primary records, sorted sets for per-user indexes, and batches that
// submit several operations in one round trip.
//
// Three backends implement Client: Redis, an in-memory map and a BoltDB file.
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable reports a connection or protocol failure talking to the store.
// Backends wrap the underlying error around it.
var ErrUnavailable = errors.New("store unavailable")

// Order selects the direction of a sorted set range.
type Order int

const (
	// Ascending returns members from the lowest score to the highest.
	Ascending Order = iota
	// Descending returns members from the highest score to the lowest.
	Descending
)

// Client defines the store operations used by the chat store.
//
// Implementations must be safe for concurrent use. None of them provide
// atomicity across calls, and Exec provides none across the operations of a
// batch either.
type Client interface {
	// HashGetAll returns every field of the hash at key, or an empty map if the
	// key does not exist.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// HashSetFields creates the hash at key or merges fields into it.
	HashSetFields(ctx context.Context, key string, fields map[string]string) error

	// DeleteKey removes key. Deleting a missing key is not an error.
	DeleteKey(ctx context.Context, key string) error

	// SortedSetAdd inserts member with score, or updates its score.
	SortedSetAdd(ctx context.Context, key string, score float64, member string) error

	// SortedSetRemove removes member. Removing a missing member is not an error.
	SortedSetRemove(ctx context.Context, key, member string) error

	// SortedSetRange returns all members of the sorted set at key ordered by
	// score in the given direction.
	SortedSetRange(ctx context.Context, key string, order Order) ([]string, error)

	// Exec submits ops as one batch and returns one Result per op, in order.
	// The returned error is non-nil only when the batch could not be submitted
	// at all; a failure of a single op is reported in its Result.
	Exec(ctx context.Context, ops []Op) ([]Result, error)
}

func unavailable(op string, err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return &opError{op: op, err: err}
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string {
	return e.op + ": " + ErrUnavailable.Error() + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error {
	return []error{ErrUnavailable, e.err}
}
