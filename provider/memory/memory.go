// Package memory is an in-process provider backed by a mutex-guarded map.
// It implements the full contract including sets, score-ordered windows and
// compare-and-delete, so it can stand in for redis in tests, local
// development, and single-process deployments.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	pr "github.com/storekit/cartcache/provider"
)

type entry struct {
	value []byte
	exp   time.Time // zero => no TTL
}

type windowEntry struct {
	member string
	at     time.Time
}

type Memory struct {
	mu      sync.Mutex
	data    map[string]entry
	sets    map[string]map[string]struct{}
	windows map[string][]windowEntry

	// now is swappable for tests
	now func() time.Time
}

var _ pr.Provider = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		data:    make(map[string]entry),
		sets:    make(map[string]map[string]struct{}),
		windows: make(map[string][]windowEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook; not safe to call
// concurrently with other operations.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

// expired reports and lazily drops a dead entry. Caller holds mu.
func (m *Memory) expired(key string, e entry) bool {
	if !e.exp.IsZero() && m.now().After(e.exp) {
		delete(m.data, key)
		return true
	}
	return false
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || m.expired(key, e) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = m.newEntry(value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok && !m.expired(key, e) {
		return false, nil
	}
	m.data[key] = m.newEntry(value, ttl)
	return true, nil
}

func (m *Memory) newEntry(value []byte, ttl time.Duration) entry {
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	return entry{value: value, exp: exp}
}

func (m *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if e, ok := m.data[k]; ok && !m.expired(k, e) {
			delete(m.data, k)
			n++
		}
		delete(m.sets, k)
		delete(m.windows, k)
	}
	return n, nil
}

func (m *Memory) MGet(_ context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if e, ok := m.data[k]; ok && !m.expired(k, e) {
			out[i] = e.value
		}
	}
	return out, nil
}

func (m *Memory) MSet(_ context.Context, items map[string][]byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range items {
		m.data[k] = m.newEntry(v, ttl)
	}
	return nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || m.expired(key, e) {
		return false, nil
	}
	if ttl > 0 {
		e.exp = m.now().Add(ttl)
	} else {
		e.exp = time.Time{}
	}
	m.data[key] = e
	return true, nil
}

func (m *Memory) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k, e := range m.data {
		if m.expired(k, e) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = struct{}{}
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sets[key]
	out := make([]string, 0, len(s))
	for mem := range s {
		out = append(out, mem)
	}
	return out, nil
}

func (m *Memory) CompareAndDelete(_ context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || m.expired(key, e) {
		return false, nil
	}
	if string(e.value) != token {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *Memory) CountWindow(_ context.Context, key, member string, now time.Time, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-window)
	kept := m.windows[key][:0]
	for _, w := range m.windows[key] {
		if !w.at.Before(cutoff) {
			kept = append(kept, w)
		}
	}
	kept = append(kept, windowEntry{member: member, at: now})
	m.windows[key] = kept
	return int64(len(kept)), nil
}

func (m *Memory) Close(context.Context) error { return nil }
