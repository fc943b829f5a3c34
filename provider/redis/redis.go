// Package redis implements the cartcache provider contract on top of
// go-redis. Tag indexes map to redis sets, rate-limit windows to sorted
// sets, and lock release to a server-side Lua compare-and-delete.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/storekit/cartcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// compare-and-delete: delete the key only while it still holds the caller's
// token. Runs atomically server-side so an expired holder can never delete
// a successor's lock.
var cadScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end
`)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// ClientConfig describes a client the provider should construct and own.
// Zero values fall back to conservative defaults; every call carries a
// bounded timeout so a dead store surfaces as an error, not a hang.
type ClientConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration // 0 => 5s
	ReadTimeout  time.Duration // 0 => 3s
	WriteTimeout time.Duration // 0 => 3s
	PoolSize     int           // 0 => 10
}

// Connect builds a dedicated client from cfg, verifies it with a ping, and
// returns a provider that owns (and will close) the client.
func Connect(ctx context.Context, cfg ClientConfig) (*Redis, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{rdb: client, closeClient: true}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // non-positive TTL means "no expiry" per provider contract
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0
	}
	return p.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (p *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return p.rdb.Del(ctx, keys...).Result()
}

func (p *Redis) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			// miss; leave slot nil
		case string:
			out[i] = []byte(vv)
		case []byte:
			out[i] = vv
		}
	}
	return out, nil
}

func (p *Redis) MSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for k, v := range items {
			pipe.Set(ctx, k, v, ttl)
		}
		return nil
	})
	return err
}

func (p *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return p.rdb.Expire(ctx, key, ttl).Result()
}

// Scan uses SCAN rather than KEYS so enumeration never blocks the server.
// The returned snapshot is eventually consistent with concurrent writers.
func (p *Redis) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := p.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (p *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return p.rdb.SAdd(ctx, key, args...).Err()
}

func (p *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return p.rdb.SMembers(ctx, key).Result()
}

func (p *Redis) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	res, err := cadScript.Run(ctx, p.rdb, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// CountWindow issues prune+add+count+expire as one MULTI/EXEC transaction so
// two concurrent callers on the same identifier cannot both observe a stale
// count.
func (p *Redis) CountWindow(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error) {
	windowStart := now.Add(-window).UnixMilli()

	var count *goredis.IntCmd
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixMilli()), Member: member})
		count = pipe.ZCount(ctx, key, "-inf", "+inf")
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count.Val(), nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
