// Package chatstore persists chat sessions in a key-value store and keeps a
// per-user recency index next to them.
//
// This file contains the options used to build a Store.
package chatstore

import (
	"time"

	"github.com/xyzj/toolbox/logger"
)

type (
	// Opt contains configuration options for the Store.
	Opt struct {
		logg        logger.Logger                  // Logger for swallowed and partial failures
		now         func() time.Time               // Clock used to score index entries
		onCleared   func(userID string)            // Called after a successful clear
		onListError func(userID string, err error) // Called when ListChats degrades to empty
		maxMessages int                            // Messages kept per chat on save, 0 keeps all
	}
	// Opts is a function type for configuring Store options.
	Opts func(opt *Opt)
)

// WithLogger sets the logger used to report failures that are not returned
// to the caller: swallowed listing errors go to Error, partial batch failures
// and owner mismatches to Warning.
func WithLogger(l logger.Logger) Opts {
	return func(opt *Opt) {
		if l != nil {
			opt.logg = l
		}
	}
}

// WithClock replaces time.Now as the source of index scores.
func WithClock(now func() time.Time) Opts {
	return func(opt *Opt) {
		if now != nil {
			opt.now = now
		}
	}
}

// WithMaxMessages limits how many messages of a chat are persisted on save.
// Older messages beyond the limit are dropped. Zero or less keeps every message.
func WithMaxMessages(n int) Opts {
	return func(opt *Opt) {
		opt.maxMessages = n
	}
}

// WithOnCleared registers a callback run after ClearChats removed a user's
// chats, typically to invalidate cached views of the listing.
func WithOnCleared(f func(userID string)) Opts {
	return func(opt *Opt) {
		opt.onCleared = f
	}
}

// WithListFailureHook registers a callback receiving the error behind a
// ListChats call that returned an empty listing because of a store failure.
func WithListFailureHook(f func(userID string, err error)) Opts {
	return func(opt *Opt) {
		opt.onListError = f
	}
}
