package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Store is the public Cache (C1) surface: get/set/getTTL/delete/clear, all
// non-throwing per §4.1. It multiplexes onto a single Backend; callers pick
// namespaces to get independent size caps and, for DiskBackend, independent
// rows in the same table.
type Store struct {
	backend Backend

	mu        sync.Mutex
	listeners map[string][]func(namespace, key string)
}

// NewStore wraps backend. A nil backend degrades to NoopBackend rather than
// panicking, consistent with the "never throw" cache contract.
func NewStore(backend Backend) *Store {
	if backend == nil {
		backend = NoopBackend{}
	}
	return &Store{backend: backend, listeners: make(map[string][]func(string, string))}
}

// Get returns the raw value for key, or (nil, false) on miss or backend
// error.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	e, ok, err := s.backend.Get(ctx, namespace, key)
	if err != nil {
		log.Printf("[cache] get %s/%s: %v", namespace, key, err)
		return nil, false
	}
	if !ok || time.Now().After(e.ExpiresAt) {
		return nil, false
	}
	return e.Value, true
}

// Set stores value under key with the given TTL. broadcast notifies the
// in-process listeners registered via Subscribe (used by components that
// mirror a cached value into a faster local structure, e.g. a library
// index); other processes sharing this cache's backend are not notified.
func (s *Store) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration, broadcast bool) {
	now := time.Now()
	e := Entry{Value: value, Stored: now, ExpiresAt: now.Add(ttl)}
	if err := s.backend.Set(ctx, namespace, key, e); err != nil {
		log.Printf("[cache] set %s/%s: %v", namespace, key, err)
		return
	}
	if broadcast {
		s.notify(namespace, key)
	}
}

// GetTTL returns the remaining TTL for key. ok is false on miss, expiry, or
// backend error. TTL is monotonically non-increasing between writes to the
// same key (§8 "Cache TTL monotonicity").
func (s *Store) GetTTL(ctx context.Context, namespace, key string) (time.Duration, bool) {
	e, ok, err := s.backend.Get(ctx, namespace, key)
	if err != nil || !ok {
		return 0, false
	}
	remaining := time.Until(e.ExpiresAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Delete removes key from namespace.
func (s *Store) Delete(ctx context.Context, namespace, key string) {
	if err := s.backend.Delete(ctx, namespace, key); err != nil {
		log.Printf("[cache] delete %s/%s: %v", namespace, key, err)
	}
}

// Clear drops every key in namespace.
func (s *Store) Clear(ctx context.Context, namespace string) {
	if err := s.backend.Clear(ctx, namespace); err != nil {
		log.Printf("[cache] clear %s: %v", namespace, err)
	}
}

// Subscribe registers fn to run (best-effort, fire-and-forget) whenever Set
// is called with broadcast=true for namespace.
func (s *Store) Subscribe(namespace string, fn func(namespace, key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[namespace] = append(s.listeners[namespace], fn)
}

func (s *Store) notify(namespace, key string) {
	s.mu.Lock()
	fns := append([]func(string, string){}, s.listeners[namespace]...)
	s.mu.Unlock()
	for _, fn := range fns {
		go fn(namespace, key)
	}
}

// StaleResult is the outcome of a stale-while-revalidate read.
type StaleResult struct {
	Value []byte
	Found bool
	Stale bool
}

// GetStale implements §4.1's stale-while-revalidate read: a fresh hit is
// returned as-is; a stale hit (age since write exceeds staleThreshold, per
// the absolute-age reading of §9's open question) is still returned, with
// Stale=true so the caller knows to trigger a background refresh under a
// DistributedLock; a miss reports Found=false.
func (s *Store) GetStale(ctx context.Context, namespace, key string, staleThreshold time.Duration) StaleResult {
	e, ok, err := s.backend.Get(ctx, namespace, key)
	if err != nil || !ok {
		return StaleResult{}
	}
	if time.Now().After(e.ExpiresAt) {
		return StaleResult{}
	}
	age := time.Since(e.Stored)
	return StaleResult{Value: e.Value, Found: true, Stale: age > staleThreshold}
}

// Typed adapts Store to a single Go type via JSON, matching how most
// callers in this codebase actually use the cache (library snapshots,
// playback resolutions) rather than raw bytes.
type Typed[T any] struct {
	store     *Store
	namespace string
}

func NewTyped[T any](store *Store, namespace string) Typed[T] {
	return Typed[T]{store: store, namespace: namespace}
}

func (t Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, ok := t.store.Get(ctx, t.namespace, key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("[cache] typed decode %s/%s: %v", t.namespace, key, err)
		return zero, false
	}
	return v, true
}

func (t Typed[T]) GetStale(ctx context.Context, key string, staleThreshold time.Duration) (value T, found, stale bool) {
	res := t.store.GetStale(ctx, t.namespace, key, staleThreshold)
	if !res.Found {
		return value, false, false
	}
	if err := json.Unmarshal(res.Value, &value); err != nil {
		log.Printf("[cache] typed decode %s/%s: %v", t.namespace, key, err)
		return value, false, false
	}
	return value, true, res.Stale
}

func (t Typed[T]) Set(ctx context.Context, key string, value T, ttl time.Duration, broadcast bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("[cache] typed encode %s/%s: %v", t.namespace, key, err)
		return
	}
	t.store.Set(ctx, t.namespace, key, raw, ttl, broadcast)
}

func (t Typed[T]) Delete(ctx context.Context, key string) {
	t.store.Delete(ctx, t.namespace, key)
}
