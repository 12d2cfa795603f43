package chatstore

import (
	"errors"

	"github.com/xyzj/chatstore/storage"
)

var (
	// ErrStoreUnavailable reports a connection or protocol failure of the
	// underlying store.
	ErrStoreUnavailable = storage.ErrUnavailable
	// ErrNotFound is returned when a chat does not exist, or is not visible to
	// the operation (an unshared chat for GetSharedChat).
	ErrNotFound = errors.New("chat not found")
	// ErrUnauthorized is returned by ShareChat when the caller does not own the chat.
	ErrUnauthorized = errors.New("chat belongs to another user")
	// ErrNoChatsToClear is returned by ClearChats when the user has no chats.
	// Nothing is written in that case.
	ErrNoChatsToClear = errors.New("no chats to clear")
)
