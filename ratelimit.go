package cartcache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RateResult reports one sliding-window admission decision.
type RateResult struct {
	Allowed   bool
	Count     int64     // events currently inside the window, this call included
	Remaining int64     // admissions left before the limit trips
	ResetAt   time.Time // when the window trailing edge passes this event
}

// CheckRateLimit admits or rejects one event for identifier under a sliding
// window. The prune/record/count/expire sequence runs as a single atomic
// provider call, so two concurrent callers on the same identifier cannot
// both observe a stale count and both be admitted when only one should be.
func (s *store[V]) CheckRateLimit(ctx context.Context, identifier string, limit int, window time.Duration) (RateResult, error) {
	now := time.Now()
	key := "rate:" + identifier
	// member must be unique per event; timestamp alone collides under load
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()[:8]

	count, err := s.provider.CountWindow(ctx, key, member, now, window)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Error("rate limit check failed", Fields{"identifier": identifier, "err": err})
		return RateResult{}, err
	}

	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return RateResult{
		Allowed:   count <= int64(limit),
		Count:     count,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}
