package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is the in-process L1 tier: a size- and age-bounded map guarded by
// a mutex with a background expiry sweep. It is always present in an
// engine; the remote tiers are optional.
type Memory struct {
	ctx       context.Context
	cancel    context.CancelFunc
	entries   map[string]*memoryEntry
	sizeBytes int64
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Tier = (*Memory)(nil)

// NewMemory returns a new in-memory tier.
func NewMemory(parent context.Context, opts ...Option) *Memory {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	m := &Memory{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*memoryEntry),
		cfg:     cfg,
	}
	m.waitGroup.Add(1)
	go m.run()
	return m
}

func (m *Memory) Name() string { return "l1" }

func (m *Memory) Get(_ context.Context, key string) (bool, []byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return false, nil, nil
	}
	if entry.expires.Before(time.Now()) {
		m.remove(key, entry)
		return false, nil, nil
	}
	return true, entry.data, nil
}

// Has reports presence without counting as an access. Used by the warming
// service to skip keys that are already cached.
func (m *Memory) Has(key string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry, ok := m.entries[key]
	return ok && !entry.expires.Before(time.Now())
}

func (m *Memory) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cfg.defaultTTL
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if existing, ok := m.entries[key]; ok {
		m.sizeBytes += int64(len(data) - len(existing.data))
		existing.data = data
		existing.expires = time.Now().Add(ttl)
		return nil
	}
	if len(m.entries) >= m.cfg.maxEntries {
		m.evictSoonest()
	}
	m.entries[key] = &memoryEntry{data: data, expires: time.Now().Add(ttl)}
	m.sizeBytes += int64(len(data))
	return nil
}

// evictSoonest drops the entry closest to expiry. Called with the mutex held.
func (m *Memory) evictSoonest() {
	var victim string
	var soonest time.Time
	for key, entry := range m.entries {
		if victim == "" || entry.expires.Before(soonest) {
			victim = key
			soonest = entry.expires
		}
	}
	if victim != "" {
		m.remove(victim, m.entries[victim])
	}
}

// remove deletes an entry and adjusts the size accounting. Called with the
// mutex held.
func (m *Memory) remove(key string, entry *memoryEntry) {
	m.sizeBytes -= int64(len(entry.data))
	delete(m.entries, key)
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry, ok := m.entries[key]
	if ok {
		m.remove(key, entry)
	}
	return ok, nil
}

func (m *Memory) DeletePattern(_ context.Context, pattern string) ([]string, int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var matched []string
	for key := range m.entries {
		if matchKey(pattern, key) {
			matched = append(matched, key)
		}
	}
	for _, key := range matched {
		m.remove(key, m.entries[key])
	}
	return matched, len(matched), nil
}

// Ping always succeeds; the in-process tier has no transport.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.entries)
}

// SizeBytes returns the summed size of stored values.
func (m *Memory) SizeBytes() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.sizeBytes
}

func (m *Memory) Close() error {
	m.once.Do(func() {
		m.cancel()
		m.waitGroup.Wait()
	})
	return nil
}

func (m *Memory) run() {
	defer m.waitGroup.Done()
	ticker := time.NewTicker(m.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.mutex.Lock()
			for key, entry := range m.entries {
				if entry.expires.Before(now) {
					m.remove(key, entry)
				}
			}
			m.mutex.Unlock()
		}
	}
}
