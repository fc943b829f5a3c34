package cartcache

import (
	"context"
	"time"

	"github.com/google/uuid"

	pr "github.com/storekit/cartcache/provider"
)

// Lock is a held distributed lock. The token proves ownership: Release only
// succeeds while the stored value still equals it, so a holder whose TTL
// lapsed can never delete a successor's lock.
type Lock struct {
	Resource string
	Token    string

	key      string
	provider pr.Provider
}

// Release frees the lock via an atomic compare-and-delete. Returns false
// when the lock was no longer held by this token (expired and possibly
// re-acquired by someone else).
func (l *Lock) Release(ctx context.Context) (bool, error) {
	return l.provider.CompareAndDelete(ctx, l.key, l.Token)
}

// AcquireLock attempts a single atomic set-if-absent with expiry. On
// contention it returns acquired=false with no error; the caller owns the
// retry/backoff policy. The TTL is the crash-safety net: no lock outlives it.
func (s *store[V]) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (*Lock, bool, error) {
	key := "lock:" + resource
	token := uuid.NewString()

	ok, err := s.provider.SetNX(ctx, key, []byte(token), ttl)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Error("lock acquire failed", Fields{"resource": resource, "err": err})
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{
		Resource: resource,
		Token:    token,
		key:      key,
		provider: s.provider,
	}, true, nil
}
