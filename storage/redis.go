package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	// Opt contains configuration options for a RedisClient.
	Opt struct {
		timeout time.Duration // per call timeout, zero leaves it to the connection
	}
	// Opts is a function type for configuring a RedisClient.
	Opts func(opt *Opt)
)

// WithTimeout bounds every call made through the RedisClient with its own
// context deadline. By default no deadline is added and the connection's
// read/write timeouts apply.
func WithTimeout(t time.Duration) Opts {
	return func(opt *Opt) {
		opt.timeout = t
	}
}

// RedisConfig holds the connection parameters of a Redis server.
type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Connect opens a go-redis client for cfg and pings it once so a bad address or
// credential fails at start rather than on the first request.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", cfg.Addr(), unavailable("ping", err))
	}
	return cli, nil
}

// RedisClient implements Client on top of a shared go-redis client.
// Batches are sent as a pipeline, not a MULTI/EXEC transaction.
type RedisClient struct {
	cnf *Opt
	db  *redis.Client
}

// NewRedisClient wraps a go-redis client as a storage Client.
// The go-redis client is safe for concurrent use and is meant to be created
// once per process and shared.
//
// Parameters:
//   - cli: A *redis.Client instance used for Redis operations
//   - opts: Variadic Opts functions to configure the client (e.g., per call timeout)
//
// Returns:
//   - *RedisClient: A Client whose batches are sent as one pipeline
//
// Example:
//
//	cli, err := storage.Connect(ctx, storage.RedisConfig{Host: "127.0.0.1", Port: 6379})
//	store := chatstore.NewStore(storage.NewRedisClient(cli))
func NewRedisClient(cli *redis.Client, opts ...Opts) *RedisClient {
	opt := &Opt{}
	for _, o := range opts {
		o(opt)
	}
	return &RedisClient{
		cnf: opt,
		db:  cli,
	}
}

func (s *RedisClient) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cnf.timeout > 0 {
		return context.WithTimeout(ctx, s.cnf.timeout)
	}
	return ctx, func() {}
}

// HashGetAll implements Client.
func (s *RedisClient) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := s.context(ctx)
	defer cancel()
	val, err := s.db.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable("hgetall "+key, err)
	}
	return val, nil
}

// HashSetFields implements Client.
func (s *RedisClient) HashSetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	return unavailable("hset "+key, s.db.HSet(ctx, key, fieldArgs(fields)...).Err())
}

// DeleteKey implements Client.
func (s *RedisClient) DeleteKey(ctx context.Context, key string) error {
	ctx, cancel := s.context(ctx)
	defer cancel()
	return unavailable("del "+key, s.db.Del(ctx, key).Err())
}

// SortedSetAdd implements Client.
func (s *RedisClient) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	ctx, cancel := s.context(ctx)
	defer cancel()
	return unavailable("zadd "+key, s.db.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err())
}

// SortedSetRemove implements Client.
func (s *RedisClient) SortedSetRemove(ctx context.Context, key, member string) error {
	ctx, cancel := s.context(ctx)
	defer cancel()
	return unavailable("zrem "+key, s.db.ZRem(ctx, key, member).Err())
}

// SortedSetRange implements Client.
func (s *RedisClient) SortedSetRange(ctx context.Context, key string, order Order) ([]string, error) {
	ctx, cancel := s.context(ctx)
	defer cancel()
	var cmd *redis.StringSliceCmd
	if order == Descending {
		cmd = s.db.ZRevRange(ctx, key, 0, -1)
	} else {
		cmd = s.db.ZRange(ctx, key, 0, -1)
	}
	members, err := cmd.Result()
	if err != nil {
		return nil, unavailable("zrange "+key, err)
	}
	return members, nil
}

// Exec implements Client with a single pipeline round trip.
//
// Redis reply errors stay on the op that caused them. Any other error on any
// command of the pipeline means the batch never made it to the server, or
// some of its replies never came back, and is returned as the batch error.
func (s *RedisClient) Exec(ctx context.Context, ops []Op) ([]Result, error) {
	results := make([]Result, len(ops))
	if len(ops) == 0 {
		return results, nil
	}
	ctx, cancel := s.context(ctx)
	defer cancel()
	pipe := s.db.Pipeline()
	cmds := make([]redis.Cmder, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpHashGetAll:
			cmds[i] = pipe.HGetAll(ctx, op.Key)
		case OpHashSet:
			if len(op.Fields) > 0 {
				cmds[i] = pipe.HSet(ctx, op.Key, fieldArgs(op.Fields)...)
			}
		case OpDelete:
			cmds[i] = pipe.Del(ctx, op.Key)
		case OpSortedSetAdd:
			cmds[i] = pipe.ZAdd(ctx, op.Key, redis.Z{Score: op.Score, Member: op.Member})
		case OpSortedSetRemove:
			cmds[i] = pipe.ZRem(ctx, op.Key, op.Member)
		default:
			results[i].Err = fmt.Errorf("unsupported batch op %d", op.Kind)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !isReplyError(err) {
		return results, unavailable("pipeline", err)
	}
	if err := pipelineError(cmds); err != nil {
		return results, unavailable("pipeline", err)
	}
	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		if err := cmd.Err(); err != nil {
			results[i].Err = err
			continue
		}
		if c, ok := cmd.(*redis.MapStringStringCmd); ok {
			results[i].Fields = c.Val()
		}
	}
	return results, nil
}

// pipelineError returns the first command error that is not a Redis reply.
// pipe.Exec only reports the first failed command, which may be a reply error
// hiding a later transport failure.
func pipelineError(cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		if err := cmd.Err(); err != nil && !isReplyError(err) {
			return err
		}
	}
	return nil
}

func isReplyError(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr)
}

func fieldArgs(fields map[string]string) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

var _ Client = (*RedisClient)(nil)
