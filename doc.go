// Package cartcache implements the shared cache/session core of an
// e-commerce platform: a provider-agnostic keyed cache with pluggable
// invalidation strategies, plus the cross-cutting primitives request
// handlers lean on (tagged invalidation, distributed locks, sliding-window
// rate limiting). The cart-specific entity built on top of it lives in the
// cart subpackage.
//
// Components:
//   - Provider: byte store with TTLs plus set/window/compare-and-delete
//     primitives (redis in production, an in-process map for tests).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - Cache[V]: the high-level cache API. Best-effort read paths absorb
//     provider failures into the stats counters; consistency-sensitive
//     paths (CacheAside's fetch, WriteThrough) propagate.
//
// Keys:
//
//	<ns>:<key>    - cache entries
//	tag:<ns>:<t>  - tag -> storage-key index (set)
//	lock:<r>      - distributed lock tokens
//	rate:<id>     - sliding-window members (sorted set)
//
// Read-through pattern:
//
//	v, err := cc.CacheAside(ctx, "user:42", fetchUser, cartcache.AsideOptions{TTL: time.Hour})
package cartcache
