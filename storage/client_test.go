package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// runClientSuite checks the behavior every backend shares.
func runClientSuite(t *testing.T, newClient func(t *testing.T) Client) {
	t.Run("hash get on missing key is empty", func(t *testing.T) {
		cli := newClient(t)
		fields, err := cli.HashGetAll(context.Background(), "chat:none")
		require.NoError(t, err)
		require.Empty(t, fields)
	})

	t.Run("hash set merges fields", func(t *testing.T) {
		ctx := context.Background()
		cli := newClient(t)
		require.NoError(t, cli.HashSetFields(ctx, "chat:c1", map[string]string{"id": "c1", "title": "a"}))
		require.NoError(t, cli.HashSetFields(ctx, "chat:c1", map[string]string{"title": "b", "sharePath": "/share/c1"}))

		fields, err := cli.HashGetAll(ctx, "chat:c1")
		require.NoError(t, err)
		require.Equal(t, map[string]string{"id": "c1", "title": "b", "sharePath": "/share/c1"}, fields)
	})

	t.Run("delete is a no-op on missing keys", func(t *testing.T) {
		ctx := context.Background()
		cli := newClient(t)
		require.NoError(t, cli.DeleteKey(ctx, "chat:none"))
		require.NoError(t, cli.HashSetFields(ctx, "chat:c1", map[string]string{"id": "c1"}))
		require.NoError(t, cli.DeleteKey(ctx, "chat:c1"))
		fields, err := cli.HashGetAll(ctx, "chat:c1")
		require.NoError(t, err)
		require.Empty(t, fields)
	})

	t.Run("sorted set orders by score and upserts", func(t *testing.T) {
		ctx := context.Background()
		cli := newClient(t)
		require.NoError(t, cli.SortedSetAdd(ctx, "idx", 1, "a"))
		require.NoError(t, cli.SortedSetAdd(ctx, "idx", 2, "b"))
		require.NoError(t, cli.SortedSetAdd(ctx, "idx", 3, "c"))

		asc, err := cli.SortedSetRange(ctx, "idx", Ascending)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, asc)

		require.NoError(t, cli.SortedSetAdd(ctx, "idx", 4, "a"))
		desc, err := cli.SortedSetRange(ctx, "idx", Descending)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "c", "b"}, desc)

		require.NoError(t, cli.SortedSetRemove(ctx, "idx", "c"))
		require.NoError(t, cli.SortedSetRemove(ctx, "idx", "zzz"))
		asc, err = cli.SortedSetRange(ctx, "idx", Ascending)
		require.NoError(t, err)
		require.Equal(t, []string{"b", "a"}, asc)
	})

	t.Run("range of a missing set is empty", func(t *testing.T) {
		members, err := newClient(t).SortedSetRange(context.Background(), "user:chat:nobody", Descending)
		require.NoError(t, err)
		require.Empty(t, members)
	})

	t.Run("exec returns one result per op in order", func(t *testing.T) {
		ctx := context.Background()
		cli := newClient(t)
		require.NoError(t, cli.HashSetFields(ctx, "chat:c0", map[string]string{"id": "c0"}))

		b := NewBatch().
			HashSet("chat:c1", map[string]string{"id": "c1"}).
			SortedSetAdd("user:chat:u1", 10, "chat:c1").
			HashGetAll("chat:c1").
			HashGetAll("chat:missing").
			Delete("chat:c0").
			SortedSetRemove("user:chat:u1", "chat:none")
		require.Equal(t, 6, b.Len())

		results, err := b.Exec(ctx, cli)
		require.NoError(t, err)
		require.Len(t, results, 6)
		require.NoError(t, FirstError(results))
		require.Equal(t, map[string]string{"id": "c1"}, results[2].Fields)
		require.Empty(t, results[3].Fields)

		fields, err := cli.HashGetAll(ctx, "chat:c0")
		require.NoError(t, err)
		require.Empty(t, fields)
		members, err := cli.SortedSetRange(ctx, "user:chat:u1", Descending)
		require.NoError(t, err)
		require.Equal(t, []string{"chat:c1"}, members)
	})

	t.Run("exec of an empty batch", func(t *testing.T) {
		results, err := newClient(t).Exec(context.Background(), nil)
		require.NoError(t, err)
		require.Empty(t, results)
	})
}

func TestMemoryClient(t *testing.T) {
	runClientSuite(t, func(t *testing.T) Client {
		return NewMemoryClient()
	})
}

func TestMemoryClient_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cli := NewMemoryClient()
	require.NoError(t, cli.HashSetFields(ctx, "chat:c1", map[string]string{"id": "c1"}))

	fields, err := cli.HashGetAll(ctx, "chat:c1")
	require.NoError(t, err)
	fields["id"] = "changed"

	fields, err = cli.HashGetAll(ctx, "chat:c1")
	require.NoError(t, err)
	require.Equal(t, "c1", fields["id"])
}

func TestFirstError(t *testing.T) {
	require.NoError(t, FirstError(nil))
	require.ErrorIs(t, FirstError([]Result{{}, {Err: ErrUnavailable}, {}}), ErrUnavailable)
}

func TestOpKindString(t *testing.T) {
	require.Equal(t, "hgetall", OpHashGetAll.String())
	require.Equal(t, "zrem", OpSortedSetRemove.String())
	require.Equal(t, "unknown", OpKind(99).String())
}
