package cartcache

import (
	"sync"
	"time"
)

// Cache strategies are small policy descriptors consumed by callers; the
// store does not enforce them. They parameterize how entries expire or get
// flushed at the call site.

// TimeBasedStrategy is plain fixed expiry with no early invalidation hook.
type TimeBasedStrategy struct {
	TTL time.Duration
}

func TimeBased(ttl time.Duration) TimeBasedStrategy { return TimeBasedStrategy{TTL: ttl} }

func (TimeBasedStrategy) ShouldInvalidate(string) bool { return false }

// EventBasedStrategy tracks externally-triggered invalidation. A reader
// checks ShouldInvalidate before trusting a hit; event sources call
// Invalidate when the underlying data changes.
type EventBasedStrategy struct {
	mu     sync.Mutex
	events map[string]struct{}
	dirty  map[string]struct{}
}

func EventBased(events ...string) *EventBasedStrategy {
	es := &EventBasedStrategy{
		events: make(map[string]struct{}, len(events)),
		dirty:  make(map[string]struct{}),
	}
	for _, e := range events {
		es.events[e] = struct{}{}
	}
	return es
}

// Invalidate marks key dirty.
func (e *EventBasedStrategy) Invalidate(key string) {
	e.mu.Lock()
	e.dirty[key] = struct{}{}
	e.mu.Unlock()
}

// ShouldInvalidate reports whether key has been marked dirty.
func (e *EventBasedStrategy) ShouldInvalidate(key string) bool {
	e.mu.Lock()
	_, ok := e.dirty[key]
	e.mu.Unlock()
	return ok
}

// OnEvent runs handler iff event is one this strategy was registered for.
func (e *EventBasedStrategy) OnEvent(event string, handler func()) {
	if _, ok := e.events[event]; ok {
		handler()
	}
}

// LRUStrategy is an eviction hint handed to the backing store's own
// configuration; the core does not evict.
type LRUStrategy struct {
	MaxSize        int
	EvictionPolicy string
}

func LRU(maxSize int) LRUStrategy {
	return LRUStrategy{MaxSize: maxSize, EvictionPolicy: "allkeys-lru"}
}

// WriteBehindStrategy accumulates writes and signals when a flush is due,
// either because the buffer reached BatchSize or because FlushInterval
// elapsed. It defines only the buffering/signal contract; the flush
// destination belongs to the caller.
type WriteBehindStrategy[V any] struct {
	BatchSize     int
	FlushInterval time.Duration

	mu     sync.Mutex
	buf    map[string]V
	ticker *time.Ticker
}

func WriteBehind[V any](batchSize int, flushInterval time.Duration) *WriteBehindStrategy[V] {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &WriteBehindStrategy[V]{
		BatchSize:     batchSize,
		FlushInterval: flushInterval,
		buf:           make(map[string]V),
		ticker:        time.NewTicker(flushInterval),
	}
}

// Add buffers one write. Returns true when the buffer just reached
// BatchSize and the caller should Drain and flush now.
func (w *WriteBehindStrategy[V]) Add(key string, value V) bool {
	w.mu.Lock()
	w.buf[key] = value
	full := len(w.buf) >= w.BatchSize
	w.mu.Unlock()
	return full
}

// Drain snapshots and clears the buffer.
func (w *WriteBehindStrategy[V]) Drain() map[string]V {
	w.mu.Lock()
	out := w.buf
	w.buf = make(map[string]V)
	w.mu.Unlock()
	return out
}

// Len reports the current buffer size.
func (w *WriteBehindStrategy[V]) Len() int {
	w.mu.Lock()
	n := len(w.buf)
	w.mu.Unlock()
	return n
}

// FlushC ticks every FlushInterval; the caller selects on it and drains.
func (w *WriteBehindStrategy[V]) FlushC() <-chan time.Time { return w.ticker.C }

// Stop halts the interval ticker. Buffered writes remain drainable.
func (w *WriteBehindStrategy[V]) Stop() { w.ticker.Stop() }
