// Package lock implements the DistributedLock (C2) described in spec.md
// §4.2: named mutual exclusion with a wait timeout and a hold TTL, used to
// make request coalescing, library refresh, and playback resolution
// single-flight (§8 "Single-flight" property).
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-password/password"
)

// ErrTimeout is returned when a caller waits longer than timeout for an
// already-held key.
var ErrTimeout = errors.New("lock: timed out waiting for key")

// Result is what withLock returns: the wrapped fn's result plus whether the
// lock was actually acquired (it always is on success; Acquired exists so
// future fallback-to-cache callers, per §4.2, can distinguish).
type Result[T any] struct {
	Value    T
	Acquired bool
}

type lease struct {
	owner    string
	expires  time.Time
	released chan struct{}
}

// Manager owns the set of currently-held locks. One Manager instance is a
// process-scoped singleton shared across the Cache, LibrarySubsystem, and
// PlaybackResolver (spec.md §9: realised as a process-scoped service passed
// by reference, not an ownership cycle).
type Manager struct {
	mu     sync.Mutex
	leases map[string]*lease
}

func NewManager() *Manager {
	return &Manager{leases: make(map[string]*lease)}
}

// Options configure one withLock call.
type Options struct {
	// Timeout bounds how long a second caller waits for the holder to
	// release before giving up with ErrTimeout.
	Timeout time.Duration
	// TTL bounds the maximum time the lock may be held; on expiry it
	// auto-releases even if the holder never returned (e.g. crashed).
	TTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.TTL <= 0 {
		o.TTL = 2 * time.Minute
	}
	return o
}

// WithLock runs fn with exclusive ownership of key. At most one fn runs per
// key at any instant (§8 Single-flight). Re-entry on the same key from the
// same logical caller is not supported — callers must not call WithLock for
// a key from inside another WithLock call for that same key; doing so
// blocks the inner call until its wait Timeout (ErrTimeout) or the outer
// lease's TTL expiry, whichever comes first.
func WithLock[T any](ctx context.Context, m *Manager, key string, opts Options, fn func(ctx context.Context) (T, error)) (Result[T], error) {
	opts = opts.withDefaults()
	owner, err := password.Generate(16, 6, 0, true, true)
	if err != nil {
		owner = key // degrade gracefully; uniqueness of the token is a diagnostic aid, not a correctness requirement
	}

	acquireCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := m.acquire(acquireCtx, key, owner, opts.TTL); err != nil {
		var zero T
		return Result[T]{Value: zero}, err
	}
	defer m.release(key, owner)

	value, err := fn(ctx)
	return Result[T]{Value: value, Acquired: true}, err
}

func (m *Manager) acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	for {
		m.mu.Lock()
		now := time.Now()
		existing, held := m.leases[key]
		if held && existing.expires.After(now) {
			waitCh := existing.released
			expiry := time.NewTimer(existing.expires.Sub(now))
			m.mu.Unlock()
			select {
			case <-waitCh:
				expiry.Stop()
				continue
			case <-expiry.C:
				continue
			case <-ctx.Done():
				expiry.Stop()
				return ErrTimeout
			}
		}
		// Either unheld, or the previous holder's TTL expired without
		// releasing (crash recovery per §4.2).
		m.leases[key] = &lease{owner: owner, expires: now.Add(ttl), released: make(chan struct{})}
		m.mu.Unlock()
		return nil
	}
}

func (m *Manager) release(key, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.leases[key]
	if !ok || existing.owner != owner {
		// Someone else's TTL-expiry reclaim already took this key; nothing
		// to release.
		return
	}
	delete(m.leases, key)
	close(existing.released)
}

// Held reports whether key currently has a live (non-expired) holder. Used
// by callers that want to skip even attempting acquisition (e.g. falling
// through to a cached result instead, per §4.2).
func (m *Manager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.leases[key]
	return ok && existing.expires.After(time.Now())
}
