package store

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iliyamo/prize-competition/internal/clock"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is the single-node implementation of Store.  It is used by
// tests and local development; the injected clock lets TTL behaviour be
// driven without sleeping.  A janitor goroutine evicts expired entries
// so the map does not grow without bound, but correctness never depends
// on it: every read treats an expired entry as absent.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clk     clock.Clock
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemory returns an in-memory store with background cleanup.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.NewReal()
	}
	m := &Memory{
		entries: make(map[string]memoryEntry),
		clk:     clk,
		stopCh:  make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(m.clk.Now()) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.expired(m.clk.Now()) {
		return false, nil
	}
	m.set(key, value, ttl)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	e, ok := m.entries[key]
	if ok && !e.expired(m.clk.Now()) {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, wrap("incr", err)
		}
		n = parsed
	}
	n++
	// Incrementing preserves any existing expiry, as Redis does.
	m.entries[key] = memoryEntry{value: strconv.FormatInt(n, 10), expiresAt: expiryOf(e, ok, m.clk.Now())}
	return n, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(m.clk.Now()) {
		return nil
	}
	e.expiresAt = m.clk.Now().Add(ttl)
	m.entries[key] = e
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return ok && !e.expired(m.clk.Now()), nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	now := m.clk.Now()
	if !ok || e.expired(now) || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

// Scan pages through a sorted snapshot of the live keys.  The cursor is
// an offset into that snapshot; keys created or expired between pages
// may be missed or repeated, which matches the advisory contract.
func (m *Memory) Scan(_ context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	if count <= 0 {
		count = 10
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clk.Now()
	all := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if e.expired(now) {
			continue
		}
		if matched, _ := path.Match(pattern, k); matched {
			all = append(all, k)
		}
	}
	sort.Strings(all)
	if cursor >= uint64(len(all)) {
		return nil, 0, nil
	}
	end := cursor + uint64(count)
	if end >= uint64(len(all)) {
		return all[cursor:], 0, nil
	}
	return all[cursor:end], end, nil
}

func (m *Memory) Pipeline() Pipeline {
	return &memoryPipeline{store: m}
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stopCh) })
	return nil
}

// set assumes the caller holds the mutex.
func (m *Memory) set(key, value string, ttl time.Duration) {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.clk.Now().Add(ttl)
	}
	m.entries[key] = e
}

func expiryOf(e memoryEntry, ok bool, now time.Time) time.Time {
	if !ok || e.expired(now) {
		return time.Time{}
	}
	return e.expiresAt
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := m.clk.Now()
			for k, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}

type memoryPipeline struct {
	store *Memory
	ops   []func()
}

func (p *memoryPipeline) Set(key, value string, ttl time.Duration) {
	p.ops = append(p.ops, func() { p.store.set(key, value, ttl) })
}

func (p *memoryPipeline) SetNX(key, value string, ttl time.Duration) {
	p.ops = append(p.ops, func() {
		if e, ok := p.store.entries[key]; ok && !e.expired(p.store.clk.Now()) {
			return
		}
		p.store.set(key, value, ttl)
	})
}

func (p *memoryPipeline) Delete(keys ...string) {
	p.ops = append(p.ops, func() {
		for _, k := range keys {
			delete(p.store.entries, k)
		}
	})
}

// Exec applies all queued operations under one lock acquisition, which
// is the closest single-node analogue of one network round trip.
func (p *memoryPipeline) Exec(_ context.Context) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	for _, op := range p.ops {
		op()
	}
	p.ops = nil
	return nil
}
