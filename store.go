package chatstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xyzj/toolbox/logger"

	"github.com/xyzj/chatstore/chat"
	"github.com/xyzj/chatstore/storage"
)

// Service is the set of chat operations offered to callers.
type Service interface {
	ListChats(ctx context.Context, userID string) []*chat.Chat
	GetChat(ctx context.Context, id, userID string) (*chat.Chat, error)
	GetSharedChat(ctx context.Context, id string) (*chat.Chat, error)
	SaveChat(ctx context.Context, c *chat.Chat, userID string) error
	ClearChats(ctx context.Context, userID string) error
	ShareChat(ctx context.Context, id, userID string) (*chat.Chat, error)
}

// NewStore creates a Store on top of cli. The client is shared by every call
// and is expected to live as long as the process.
//
// Parameters:
//   - cli: The storage.Client holding the chat hashes and user indexes
//   - opts: Variadic Opts functions to configure the store (e.g., logger, clock)
//
// Default configuration:
//   - logger.NewNilLogger(), nothing is logged
//   - time.Now scores the user index
//   - every message of a chat is persisted
//
// Returns:
//   - *Store: A Store implementing Service
//
// Example:
//
//	store := NewStore(storage.NewMemoryClient(), WithMaxMessages(50))
func NewStore(cli storage.Client, opts ...Opts) *Store {
	opt := &Opt{
		logg: logger.NewNilLogger(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(opt)
	}
	return &Store{
		cli: cli,
		cnf: opt,
	}
}

// Store keeps each chat in a hash at chat:<id> and lists a user's chats in
// the sorted set user:chat:<userId>, scored by save time in milliseconds.
//
// The hash and its index entry are written in one batch but not atomically:
// a failed batch may leave one without the other, and readers must tolerate
// both. Store holds no state of its own and needs no locking.
type Store struct {
	cli storage.Client
	cnf *Opt
}

// ListChats returns the user's chats, most recently saved first.
//
// An empty userID returns an empty listing without touching the store. Store
// failures also return an empty listing; the error only reaches the logger
// and the list failure hook. Index entries whose hash is gone are returned as
// empty chats.
func (s *Store) ListChats(ctx context.Context, userID string) []*chat.Chat {
	if userID == "" {
		return []*chat.Chat{}
	}
	chats, err := s.listChats(ctx, userID)
	if err != nil {
		s.cnf.logg.Error(fmt.Sprintf("list chats of [%s] error: %v", userID, err))
		if s.cnf.onListError != nil {
			s.cnf.onListError(userID, err)
		}
		return []*chat.Chat{}
	}
	return chats
}

func (s *Store) listChats(ctx context.Context, userID string) ([]*chat.Chat, error) {
	keys, err := s.cli.SortedSetRange(ctx, chat.UserIndexKey(userID), storage.Descending)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []*chat.Chat{}, nil
	}
	b := storage.NewBatch()
	for _, key := range keys {
		b.HashGetAll(key)
	}
	results, err := b.Exec(ctx, s.cli)
	if err != nil {
		return nil, err
	}
	chats := make([]*chat.Chat, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("hgetall %s: %w", keys[i], r.Err)
		}
		c, _ := chat.Decode(r.Fields)
		chats = append(chats, c)
	}
	return chats, nil
}

// GetChat returns the chat with the given id. userID is accepted for symmetry
// with the other operations; the lookup is by id only.
func (s *Store) GetChat(ctx context.Context, id, userID string) (*chat.Chat, error) {
	c, _, err := s.load(ctx, id)
	return c, err
}

// GetSharedChat returns the chat with the given id if it has been shared.
// An unshared chat is reported as ErrNotFound, like a missing one.
func (s *Store) GetSharedChat(ctx context.Context, id string) (*chat.Chat, error) {
	c, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Shared() {
		return nil, ErrNotFound
	}
	return c, nil
}

// SaveChat writes the chat hash and moves the chat to the top of its owner's
// index, in one batch.
//
// The index is the one of c.UserID, not of the userID argument; a mismatch is
// logged and otherwise honored. An empty c.UserID is saved as "anonymous".
// Only a batch that could not be submitted is reported; a failure of one of
// its writes is logged. Payload fields are written as given, except that with
// WithMaxMessages only the last elements of the messages array are kept.
func (s *Store) SaveChat(ctx context.Context, c *chat.Chat, userID string) error {
	userID = orAnonymous(userID)
	rec := *c
	rec.UserID = orAnonymous(rec.UserID)
	if rec.UserID != userID {
		s.cnf.logg.Warning(fmt.Sprintf("save chat [%s]: owner [%s] differs from caller [%s], indexing under owner", rec.ID, rec.UserID, userID))
	}
	if s.cnf.maxMessages > 0 && rec.Messages != "" {
		msgs, ok := chat.TrimMessages(rec.Messages, s.cnf.maxMessages)
		if !ok {
			s.cnf.logg.Warning(fmt.Sprintf("save chat [%s]: messages are not a JSON array, stored untrimmed", rec.ID))
		}
		rec.Messages = msgs
	}
	key := chat.Key(rec.ID)
	results, err := storage.NewBatch().
		HashSet(key, chat.Encode(&rec)).
		SortedSetAdd(chat.UserIndexKey(rec.UserID), float64(s.cnf.now().UnixMilli()), key).
		Exec(ctx, s.cli)
	if err != nil {
		return fmt.Errorf("save chat [%s]: %w", rec.ID, err)
	}
	if err := storage.FirstError(results); err != nil {
		s.cnf.logg.Warning(fmt.Sprintf("save chat [%s] partially applied: %v", rec.ID, err))
	}
	return nil
}

// ClearChats removes every chat of the user together with its index entry.
// It returns ErrNoChatsToClear, without writing anything, when the user has no
// chats. On success the cleared hook is called.
func (s *Store) ClearChats(ctx context.Context, userID string) error {
	userID = orAnonymous(userID)
	indexKey := chat.UserIndexKey(userID)
	keys, err := s.cli.SortedSetRange(ctx, indexKey, storage.Ascending)
	if err != nil {
		return fmt.Errorf("clear chats of [%s]: %w", userID, err)
	}
	if len(keys) == 0 {
		return ErrNoChatsToClear
	}
	b := storage.NewBatch()
	for _, key := range keys {
		b.Delete(key).SortedSetRemove(indexKey, key)
	}
	results, err := b.Exec(ctx, s.cli)
	if err != nil {
		return fmt.Errorf("clear chats of [%s]: %w", userID, err)
	}
	if err := storage.FirstError(results); err != nil {
		s.cnf.logg.Warning(fmt.Sprintf("clear chats of [%s] partially applied: %v", userID, err))
	}
	if s.cnf.onCleared != nil {
		s.cnf.onCleared(userID)
	}
	return nil
}

// ShareChat publishes the chat under /share/<id> and returns the updated
// record. Only the owner recorded in the chat may share it. Sharing twice
// writes the same path again.
func (s *Store) ShareChat(ctx context.Context, id, userID string) (*chat.Chat, error) {
	_, fields, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields[chat.FieldUserID] != orAnonymous(userID) {
		return nil, ErrUnauthorized
	}
	fields[chat.FieldSharePath] = chat.SharePath(id)
	if err := s.cli.HashSetFields(ctx, chat.Key(id), fields); err != nil {
		return nil, fmt.Errorf("share chat [%s]: %w", id, err)
	}
	c, _ := chat.Decode(fields)
	return c, nil
}

// load fetches and decodes the hash of a chat, keeping the raw fields.
func (s *Store) load(ctx context.Context, id string) (*chat.Chat, map[string]string, error) {
	fields, err := s.cli.HashGetAll(ctx, chat.Key(id))
	if err != nil {
		return nil, nil, fmt.Errorf("get chat [%s]: %w", id, err)
	}
	c, ok := chat.Decode(fields)
	if !ok {
		return nil, nil, ErrNotFound
	}
	return c, fields, nil
}

func orAnonymous(userID string) string {
	if userID == "" {
		return chat.Anonymous
	}
	return userID
}

var _ Service = (*Store)(nil)
