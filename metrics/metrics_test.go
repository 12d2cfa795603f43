package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	chatstore "github.com/xyzj/chatstore"
	"github.com/xyzj/chatstore/chat"
	"github.com/xyzj/chatstore/storage"
)

func TestWrap_RecordsLatencyAndErrors(t *testing.T) {
	ctx := context.Background()
	svc := Wrap(chatstore.NewStore(storage.NewMemoryClient()))

	notFound := testutil.ToFloat64(StoreErrors.WithLabelValues("get_chat", "not_found"))
	noChats := testutil.ToFloat64(StoreErrors.WithLabelValues("clear_chats", "no_chats"))

	require.NoError(t, svc.SaveChat(ctx, &chat.Chat{ID: "a", UserID: "u1"}, "u1"))
	require.Len(t, svc.ListChats(ctx, "u1"), 1)
	_, err := svc.GetChat(ctx, "missing", "u1")
	require.ErrorIs(t, err, chatstore.ErrNotFound)
	_, err = svc.ShareChat(ctx, "a", "u1")
	require.NoError(t, err)
	_, err = svc.GetSharedChat(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, svc.ClearChats(ctx, "u1"))
	require.ErrorIs(t, svc.ClearChats(ctx, "u1"), chatstore.ErrNoChatsToClear)

	require.Equal(t, notFound+1, testutil.ToFloat64(StoreErrors.WithLabelValues("get_chat", "not_found")))
	require.Equal(t, noChats+1, testutil.ToFloat64(StoreErrors.WithLabelValues("clear_chats", "no_chats")))
	require.GreaterOrEqual(t, testutil.CollectAndCount(StoreLatency), 6)
}

func TestListFailure(t *testing.T) {
	before := testutil.ToFloat64(ListFailures)
	ListFailure("u1", errors.New("down"))
	require.Equal(t, before+1, testutil.ToFloat64(ListFailures))
}

func TestReason(t *testing.T) {
	require.Equal(t, "unavailable", reason(fmt.Errorf("get chat [a]: %w", storage.ErrUnavailable)))
	require.Equal(t, "unauthorized", reason(chatstore.ErrUnauthorized))
	require.Equal(t, "other", reason(errors.New("x")))
}
