package storage

import (
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { cli.Close() })
	return mr, NewRedisClient(cli, WithTimeout(time.Second))
}

func TestRedisClient(t *testing.T) {
	runClientSuite(t, func(t *testing.T) Client {
		_, cli := newMiniRedis(t)
		return cli
	})
}

func TestRedisClient_LayoutMatchesRedisTypes(t *testing.T) {
	ctx := context.Background()
	mr, cli := newMiniRedis(t)

	_, err := NewBatch().
		HashSet("chat:c1", map[string]string{"id": "c1", "userId": "u1"}).
		SortedSetAdd("user:chat:u1", 1700000000000, "chat:c1").
		Exec(ctx, cli)
	require.NoError(t, err)

	require.Equal(t, "u1", mr.HGet("chat:c1", "userId"))
	score, err := mr.ZScore("user:chat:u1", "chat:c1")
	require.NoError(t, err)
	require.Equal(t, float64(1700000000000), score)
}

func TestRedisClient_ReplyErrorStaysOnItsOp(t *testing.T) {
	ctx := context.Background()
	mr, cli := newMiniRedis(t)
	require.NoError(t, mr.Set("chat:str", "plain string"))

	results, err := NewBatch().
		HashGetAll("chat:str").
		HashSet("chat:c1", map[string]string{"id": "c1"}).
		Exec(ctx, cli)
	require.NoError(t, err)
	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.Equal(t, "c1", mr.HGet("chat:c1", "id"))
}

func TestRedisClient_Unavailable(t *testing.T) {
	ctx := context.Background()
	mr, cli := newMiniRedis(t)
	mr.Close()

	_, err := cli.HashGetAll(ctx, "chat:c1")
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = cli.SortedSetRange(ctx, "user:chat:u1", Descending)
	require.ErrorIs(t, err, ErrUnavailable)

	require.ErrorIs(t, cli.HashSetFields(ctx, "chat:c1", map[string]string{"id": "c1"}), ErrUnavailable)

	_, err = NewBatch().Delete("chat:c1").Exec(ctx, cli)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg := RedisConfig{Host: mr.Host(), Port: port}

	cli, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, cli.Close())

	mr.Close()
	_, err = Connect(context.Background(), cfg)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRedisConfigAddr(t *testing.T) {
	require.Equal(t, "127.0.0.1:6379", RedisConfig{Host: "127.0.0.1", Port: 6379}.Addr())
	require.Equal(t, "[::1]:6380", RedisConfig{Host: "::1", Port: 6380}.Addr())
}

func TestPipelineError_LooksPastReplyErrors(t *testing.T) {
	ctx := context.Background()
	reply := redis.NewMapStringStringCmd(ctx, "hgetall", "chat:str")
	reply.SetErr(redis.Nil)
	ok := redis.NewIntCmd(ctx, "zadd", "user:chat:u1")
	lost := redis.NewIntCmd(ctx, "hset", "chat:c1")
	lost.SetErr(io.EOF)

	require.NoError(t, pipelineError([]redis.Cmder{reply, nil, ok}))
	require.ErrorIs(t, pipelineError([]redis.Cmder{reply, nil, ok, lost}), io.EOF)
}
