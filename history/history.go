// Package history keeps the most recent messages of a conversation in a
// fixed-size circular buffer built on container/ring.
//
// The window is generic over the message type: the store trims raw JSON
// elements so the stored bytes are never rewritten, while callers holding
// decoded messages can use the same window on their own type.
package history

import (
	"container/ring"
)

// Window holds at most Cap messages. Pushing past capacity overwrites the
// oldest message.
type Window[T any] struct {
	data *ring.Ring
	size int
}

// New creates a window holding up to size messages. size must be positive.
func New[T any](size int) *Window[T] {
	return &Window[T]{
		data: ring.New(size),
		size: size,
	}
}

// Push appends messages in order, dropping the oldest ones when full.
func (w *Window[T]) Push(msgs ...T) {
	for _, msg := range msgs {
		w.data.Value = msg
		w.data = w.data.Next()
	}
}

// Cap returns the capacity of the window.
func (w *Window[T]) Cap() int {
	return w.size
}

// Slice returns the held messages, oldest first.
func (w *Window[T]) Slice() []T {
	x := make([]T, 0, w.size)
	w.data.Do(func(a any) {
		if a == nil {
			return
		}
		x = append(x, a.(T))
	})
	return x
}

// Last returns the last n messages of msgs. msgs itself is returned when it
// already fits or when n is not positive.
func Last[T any](n int, msgs []T) []T {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	w := New[T](n)
	w.Push(msgs...)
	return w.Slice()
}
