// Package provider defines the backing-store abstraction used by cartcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended
// or appended metadata, no re-encoding, no mutation). If a store performs
// internal transforms (e.g., compression), they MUST be fully reversed so
// that the bytes returned by Get are identical to the bytes provided to Set.
//
// Beyond plain byte storage the contract covers the primitives the cache
// core composes: set membership for tag indexes, score-ordered windows for
// rate limiting, and server-side atomic compare-and-delete for lock release.
package provider

import (
	"context"
	"time"
)

// Provider is the keyed byte store with TTLs plus the auxiliary primitives
// the cache core needs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry. The write is a single
	// round-trip: a key is never observable in a partially written state.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if the key does not exist. Returns ok=false
	// (and nil error) when the key was already present.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// MGet returns one slot per requested key, nil for misses.
	// Issued as a single round-trip.
	MGet(ctx context.Context, keys []string) ([][]byte, error)

	// MSet stores all items in one pipelined round-trip. ttl <= 0 means
	// no expiry. Individual writes are not mutually atomic against
	// unrelated concurrent writers.
	MSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Expire resets a key's TTL. Returns ok=false if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Scan enumerates keys matching a glob pattern. The snapshot may be
	// stale by the time the caller acts on it.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// SAdd adds members to the set stored at key.
	SAdd(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of the set stored at key.
	SMembers(ctx context.Context, key string) ([]string, error)

	// CompareAndDelete deletes key only if its current value equals token.
	// The compare and the delete execute atomically server-side.
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)

	// CountWindow records member at time now in the score-ordered window at
	// key, prunes entries older than now-window, refreshes the key's expiry
	// to window, and returns the resulting entry count. The four steps
	// execute as one atomic sequence per call.
	CountWindow(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
