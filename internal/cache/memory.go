package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryBackend is the default, in-process cache tier: one LRU per
// namespace, capped independently as §4.1 requires ("multiple named
// namespaces coexist with independent size caps").
type MemoryBackend struct {
	mu         sync.Mutex
	defaultCap int
	caps       map[string]int
	namespaces map[string]*lru.Cache[string, Entry]
}

// NewMemoryBackend builds an in-memory backend. defaultCap bounds any
// namespace not given an explicit cap via WithNamespaceCap.
func NewMemoryBackend(defaultCap int) *MemoryBackend {
	if defaultCap <= 0 {
		defaultCap = 10_000
	}
	return &MemoryBackend{
		defaultCap: defaultCap,
		caps:       make(map[string]int),
		namespaces: make(map[string]*lru.Cache[string, Entry]),
	}
}

// WithNamespaceCap overrides the entry cap for one namespace. Must be
// called before the namespace is first accessed: any Get or Set on it
// creates it with the cap in effect at that moment.
func (m *MemoryBackend) WithNamespaceCap(namespace string, cap int) *MemoryBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps[namespace] = cap
	return m
}

func (m *MemoryBackend) namespaceLocked(namespace string) *lru.Cache[string, Entry] {
	if ns, ok := m.namespaces[namespace]; ok {
		return ns
	}
	capacity := m.defaultCap
	if c, ok := m.caps[namespace]; ok && c > 0 {
		capacity = c
	}
	ns, _ := lru.New[string, Entry](capacity)
	m.namespaces[namespace] = ns
	return ns
}

func (m *MemoryBackend) Get(_ context.Context, namespace, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.namespaceLocked(namespace)
	e, ok := ns.Get(key)
	return e, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, namespace, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.namespaceLocked(namespace)
	ns.Add(key, e)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.namespaceLocked(namespace)
	ns.Remove(key)
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.namespaceLocked(namespace)
	ns.Purge()
	return nil
}
