package cartcache

import (
	"context"
	"time"

	c "github.com/storekit/cartcache/codec"
	pr "github.com/storekit/cartcache/provider"
)

// FetchFunc loads a value from the system of record on a cache miss.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// PersistFunc writes a value to the system of record ahead of the cache.
type PersistFunc[V any] func(ctx context.Context, value V) error

// WarmFunc loads the values for keys the cache is missing.
type WarmFunc[V any] func(ctx context.Context, missing []string) (map[string]V, error)

// Cache is the high-level, provider-agnostic cache API.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
type Cache[V any] interface {
	// Single-key operations. Provider failures on these paths are absorbed
	// into the error counter; Get reports them alongside a miss so strict
	// callers can still propagate.
	Get(ctx context.Context, key string, opts ...GetOption) (v V, ok bool, err error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Batch operations; one pipelined round-trip each.
	MGet(ctx context.Context, keys []string) (map[string]V, error)
	MSet(ctx context.Context, items map[string]V, ttl time.Duration) (bool, error)

	// Patterns. Both propagate fetch/persist failures.
	CacheAside(ctx context.Context, key string, fetch FetchFunc[V], opts AsideOptions) (V, error)
	WriteThrough(ctx context.Context, key string, value V, persist PersistFunc[V], ttl time.Duration) error
	Warm(ctx context.Context, keys []string, fetch WarmFunc[V]) (map[string]V, error)

	// Tagged invalidation.
	Tag(ctx context.Context, key string, tags ...string) error
	InvalidateTag(ctx context.Context, tag string) (int, error)

	// Cross-cutting primitives.
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (lock *Lock, acquired bool, err error)
	CheckRateLimit(ctx context.Context, identifier string, limit int, window time.Duration) (RateResult, error)

	Stats() StatsSnapshot
	ResetStats()
	Close(ctx context.Context) error
}

// Options tune the behavior of the cache.
// Only Namespace and Provider are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions, e.g. "product", "session"
	Provider  pr.Provider

	Codec      c.Codec[V]    // nil => codec.JSON[V]
	Logger     Logger        // nil => NopLogger
	DefaultTTL time.Duration // 0 => 1h
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newStore[V](opts)
}

// GetOption tunes a single Get call.
type GetOption func(*getConfig)

type getConfig struct {
	extendTTL bool
	ttl       time.Duration
}

// WithTTLExtend slides the entry's expiry forward on a hit. ttl == 0 uses
// the store's default TTL.
func WithTTLExtend(ttl time.Duration) GetOption {
	return func(g *getConfig) {
		g.extendTTL = true
		g.ttl = ttl
	}
}

// AsideOptions tune CacheAside.
type AsideOptions struct {
	TTL          time.Duration // 0 => store default
	ForceRefresh bool          // skip the cache read, always fetch
	StaleIfError bool          // on fetch failure, return the cached value if one exists
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
