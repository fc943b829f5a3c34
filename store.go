package cartcache

import (
	"context"
	"fmt"
	"time"

	c "github.com/storekit/cartcache/codec"
	pr "github.com/storekit/cartcache/provider"
)

type store[V any] struct {
	ns         string
	keys       Keys
	provider   pr.Provider
	codec      c.Codec[V]
	log        Logger
	defaultTTL time.Duration
	stats      stats
}

func newStore[V any](opts Options[V]) (*store[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("cartcache: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("cartcache: namespace is required")
	}

	s := &store[V]{
		ns:       opts.Namespace,
		keys:     Keys{Namespace: opts.Namespace},
		provider: opts.Provider,
	}

	// defaults
	if opts.Codec != nil {
		s.codec = opts.Codec
	} else {
		s.codec = c.JSON[V]{}
	}
	if opts.Logger != nil {
		s.log = opts.Logger
	} else {
		s.log = NopLogger{}
	}
	s.defaultTTL = coalesce(opts.DefaultTTL, time.Hour)

	return s, nil
}

func (s *store[V]) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

// Get resolves key against the backing store. A provider failure is counted,
// logged, and reported as (zero, false, err): best-effort callers treat it
// as a miss, consistency-sensitive callers propagate err. A payload the
// codec rejects comes back as (zero, false, *DecodeError) with the raw
// bytes attached.
func (s *store[V]) Get(ctx context.Context, key string, opts ...GetOption) (V, bool, error) {
	var zero V
	var cfg getConfig
	for _, o := range opts {
		o(&cfg)
	}

	k := s.keys.Key(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Error("cache get failed", Fields{"key": key, "err": err})
		return zero, false, err
	}
	if !ok {
		s.stats.misses.Add(1)
		return zero, false, nil
	}
	s.stats.hits.Add(1)

	if cfg.extendTTL {
		ttl := coalesce(cfg.ttl, s.defaultTTL)
		if _, err := s.provider.Expire(ctx, k, ttl); err != nil {
			// the read already succeeded; a failed slide only shortens life
			s.stats.errors.Add(1)
			s.log.Warn("ttl extend failed", Fields{"key": key, "err": err})
		}
	}

	v, err := s.codec.Decode(raw)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Warn("cache payload undecodable", Fields{"key": key, "err": err})
		return zero, false, &DecodeError{Key: key, Raw: raw, Err: err}
	}
	return v, true, nil
}

// Set stores value under key. ttl <= 0 means no expiry. Returns false on
// encode or provider failure; the error carries the cause for strict callers.
func (s *store[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	payload, err := s.codec.Encode(value)
	if err != nil {
		s.stats.errors.Add(1)
		return false, fmt.Errorf("cartcache: encode %q: %w", key, err)
	}
	if err := s.provider.Set(ctx, s.keys.Key(key), payload, ttl); err != nil {
		s.stats.errors.Add(1)
		s.log.Error("cache set failed", Fields{"key": key, "err": err})
		return false, err
	}
	s.stats.sets.Add(1)
	return true, nil
}

func (s *store[V]) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.provider.Del(ctx, s.keys.Key(key)); err != nil {
		s.stats.errors.Add(1)
		s.log.Error("cache delete failed", Fields{"key": key, "err": err})
		return false, err
	}
	s.stats.deletes.Add(1)
	return true, nil
}

// DeletePattern removes every key in this namespace matching the glob and
// returns how many were found. Enumeration and deletion are separate round
// trips; a writer racing between them can leave an entry behind. Bulk
// invalidation here is eventually consistent, not transactional.
func (s *store[V]) DeletePattern(ctx context.Context, pattern string) (int, error) {
	matches, err := s.provider.Scan(ctx, s.ns+":"+pattern)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Error("cache scan failed", Fields{"pattern": pattern, "err": err})
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}
	if _, err := s.provider.Del(ctx, matches...); err != nil {
		s.stats.errors.Add(1)
		s.log.Error("cache bulk delete failed", Fields{"pattern": pattern, "err": err})
		return 0, err
	}
	s.stats.deletes.Add(int64(len(matches)))
	return len(matches), nil
}

// MGet fetches all keys in a single round-trip. Missing and undecodable
// entries are omitted from the result.
func (s *store[V]) MGet(ctx context.Context, keys []string) (map[string]V, error) {
	out := make(map[string]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	storage := make([]string, len(keys))
	for i, k := range keys {
		storage[i] = s.keys.Key(k)
	}
	raws, err := s.provider.MGet(ctx, storage)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Error("cache mget failed", Fields{"keys": len(keys), "err": err})
		return out, err
	}
	for i, raw := range raws {
		if raw == nil {
			s.stats.misses.Add(1)
			continue
		}
		v, err := s.codec.Decode(raw)
		if err != nil {
			s.stats.errors.Add(1)
			s.log.Warn("cache payload undecodable", Fields{"key": keys[i], "err": err})
			continue
		}
		s.stats.hits.Add(1)
		out[keys[i]] = v
	}
	return out, nil
}

// MSet stores all items in one pipelined round-trip.
func (s *store[V]) MSet(ctx context.Context, items map[string]V, ttl time.Duration) (bool, error) {
	if len(items) == 0 {
		return true, nil
	}
	encoded := make(map[string][]byte, len(items))
	for k, v := range items {
		payload, err := s.codec.Encode(v)
		if err != nil {
			s.stats.errors.Add(1)
			return false, fmt.Errorf("cartcache: encode %q: %w", k, err)
		}
		encoded[s.keys.Key(k)] = payload
	}
	if err := s.provider.MSet(ctx, encoded, ttl); err != nil {
		s.stats.errors.Add(1)
		s.log.Error("cache mset failed", Fields{"keys": len(items), "err": err})
		return false, err
	}
	s.stats.sets.Add(int64(len(items)))
	return true, nil
}

// CacheAside is the canonical read-through: serve a hit, otherwise fetch,
// populate, and return. When fetch fails and StaleIfError is set, the last
// cached value is served instead of the error.
func (s *store[V]) CacheAside(ctx context.Context, key string, fetch FetchFunc[V], opts AsideOptions) (V, error) {
	var zero V
	if !opts.ForceRefresh {
		if v, ok, _ := s.Get(ctx, key); ok {
			return v, nil
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		if opts.StaleIfError {
			if stale, ok, _ := s.Get(ctx, key); ok {
				s.log.Warn("serving stale value after fetch failure", Fields{"key": key, "err": err})
				return stale, nil
			}
		}
		return zero, fmt.Errorf("cartcache: cache-aside fetch %q: %w", key, err)
	}

	// best-effort populate; the freshly fetched value is good regardless
	_, _ = s.Set(ctx, key, v, coalesce(opts.TTL, s.defaultTTL))
	return v, nil
}

// WriteThrough persists to the system of record first and updates the cache
// only on success. Any failure leaves the cache without an entry for key, so
// a later read cannot observe since-superseded data.
func (s *store[V]) WriteThrough(ctx context.Context, key string, value V, persist PersistFunc[V], ttl time.Duration) error {
	if err := persist(ctx, value); err != nil {
		_, delErr := s.Delete(ctx, key)
		if delErr != nil {
			s.log.Error("stale entry may survive failed write-through", Fields{"key": key, "err": delErr})
		}
		return &WriteThroughError{Key: key, PersistErr: err}
	}
	if _, err := s.Set(ctx, key, value, ttl); err != nil {
		_, _ = s.Delete(ctx, key)
		return &WriteThroughError{Key: key, CacheErr: err}
	}
	return nil
}

// Warm primes the cache for keys: one batched read, one fetch for the
// misses, one batched write. Returns cached and fetched values merged.
func (s *store[V]) Warm(ctx context.Context, keys []string, fetch WarmFunc[V]) (map[string]V, error) {
	cached, err := s.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, k := range keys {
		if _, ok := cached[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return cached, nil
	}

	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("cartcache: warm fetch: %w", err)
	}
	if _, err := s.MSet(ctx, fetched, 0); err != nil {
		s.log.Warn("warm population failed", Fields{"keys": len(fetched), "err": err})
	}

	for k, v := range fetched {
		cached[k] = v
	}
	return cached, nil
}

func (s *store[V]) tagKey(tag string) string { return "tag:" + s.ns + ":" + tag }

// Tag associates key with the given tags in the reverse index. Keys tagged
// across separate calls all fall under a later InvalidateTag.
func (s *store[V]) Tag(ctx context.Context, key string, tags ...string) error {
	k := s.keys.Key(key)
	for _, t := range tags {
		if err := s.provider.SAdd(ctx, s.tagKey(t), k); err != nil {
			s.stats.errors.Add(1)
			return fmt.Errorf("cartcache: tag %q with %q: %w", key, t, err)
		}
	}
	return nil
}

// InvalidateTag deletes every key associated with tag plus the tag's own
// index entry, and returns how many keys were covered. A second call for
// the same tag finds an empty index and returns 0.
func (s *store[V]) InvalidateTag(ctx context.Context, tag string) (int, error) {
	tk := s.tagKey(tag)
	members, err := s.provider.SMembers(ctx, tk)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Error("tag read failed", Fields{"tag": tag, "err": err})
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	if _, err := s.provider.Del(ctx, append(members, tk)...); err != nil {
		s.stats.errors.Add(1)
		s.log.Error("tag invalidation failed", Fields{"tag": tag, "err": err})
		return 0, err
	}
	s.stats.deletes.Add(int64(len(members)))
	return len(members), nil
}

func (s *store[V]) Stats() StatsSnapshot { return s.stats.snapshot() }
func (s *store[V]) ResetStats()          { s.stats.reset() }
