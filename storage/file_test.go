package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xyzj/toolbox/json"
)

func TestFileClient(t *testing.T) {
	runClientSuite(t, func(t *testing.T) Client {
		cli, err := NewFileClient(filepath.Join(t.TempDir(), "chats.db"))
		require.NoError(t, err)
		return cli
	})
}

func TestFileClient_PersistsTouchedKeys(t *testing.T) {
	ctx := context.Background()
	cli, err := NewFileClient(filepath.Join(t.TempDir(), "chats.db"))
	require.NoError(t, err)

	results, err := NewBatch().
		HashSet("chat:c1", map[string]string{"id": "c1", "userId": "u1"}).
		SortedSetAdd("user:chat:u1", 1, "chat:c1").
		HashSet("chat:c2", map[string]string{"id": "c2", "userId": "u1"}).
		SortedSetAdd("user:chat:u1", 2, "chat:c2").
		Exec(ctx, cli)
	require.NoError(t, err)
	require.NoError(t, FirstError(results))
	require.NoError(t, cli.DeleteKey(ctx, "chat:c1"))
	require.NoError(t, cli.SortedSetRemove(ctx, "user:chat:u1", "chat:c1"))

	onDisk := map[string]fileRecord{}
	cli.db.ForEach(func(k, v string) error {
		rec := fileRecord{}
		require.NoError(t, json.UnmarshalFromString(v, &rec))
		onDisk[k] = rec
		return nil
	})
	require.Equal(t, map[string]fileRecord{
		"chat:c2":      {Hash: map[string]string{"id": "c2", "userId": "u1"}},
		"user:chat:u1": {ZSet: map[string]float64{"chat:c2": 2}},
	}, onDisk)
}
