// Package library implements LibrarySubsystem (C6): catalog, meta, and
// search over the items a user owns on one debrid account, per spec.md
// §4.6, with the same stale-while-revalidate + single-flight cache
// protocol §4.5 describes for instant-availability.
package library

import (
	"context"
	"log"
	"sync"
	"time"

	"aiostreams/internal/cache"
	"aiostreams/internal/lock"
	"aiostreams/models"
)

// Snapshot is one fetched-and-cached owned-items listing.
type Snapshot struct {
	Items     []models.DebridDownload
	FetchedAt time.Time
}

// Fetcher pulls a fresh snapshot from the upstream debrid account
// (typically ListMagnets/ListNzbs on a debrid.Provider).
type Fetcher func(ctx context.Context) ([]models.DebridDownload, error)

// Subsystem serves Catalog/Meta/Search over cached library snapshots keyed
// by {serviceId, credentialHash}.
type Subsystem struct {
	snapshots       cache.Typed[Snapshot]
	locks           *lock.Manager
	refreshInterval time.Duration
	staleThreshold  time.Duration

	refreshingMu sync.Mutex
	refreshing   map[string]struct{}
}

// New builds a Subsystem. refreshInterval is the nominal background-refresh
// cadence used to derive the cache TTL (max(3*refreshInterval, 24h), per
// §4.6); staleThreshold is how old a snapshot may get before a read
// triggers a background refresh while still serving the stale value.
func New(store *cache.Store, locks *lock.Manager, refreshInterval, staleThreshold time.Duration) *Subsystem {
	return &Subsystem{
		snapshots:       cache.NewTyped[Snapshot](store, "library"),
		locks:           locks,
		refreshInterval: refreshInterval,
		staleThreshold:  staleThreshold,
		refreshing:      make(map[string]struct{}),
	}
}

func (s *Subsystem) ttl() time.Duration {
	ttl := 3 * s.refreshInterval
	if ttl < 24*time.Hour {
		ttl = 24 * time.Hour
	}
	return ttl
}

// Key identifies one cached library snapshot.
func Key(serviceID, credentialHash string) string {
	return serviceID + ":" + credentialHash
}

// Get returns the current snapshot for key, fetching or refreshing it
// through fetch as needed:
//   - fresh cache hit: returned directly.
//   - stale hit: returned immediately, with exactly one background refresh
//     kicked off under a per-key lock (collapsing concurrent stale reads).
//   - miss: fetched in the foreground under the same per-key lock, so
//     concurrent misses collapse into a single upstream call.
func (s *Subsystem) Get(ctx context.Context, key string, fetch Fetcher) (Snapshot, error) {
	value, found, stale := s.snapshots.GetStale(ctx, key, s.staleThreshold)
	if found && !stale {
		return value, nil
	}
	if found && stale {
		if s.claimRefresh(key) {
			go s.backgroundRefresh(key, fetch)
		}
		return value, nil
	}

	result, err := lock.WithLock(ctx, s.locks, s.refreshLockKey(key), lock.Options{}, func(ctx context.Context) (Snapshot, error) {
		if v, ok := s.snapshots.Get(ctx, key); ok {
			return v, nil
		}
		return s.fetchAndStore(ctx, key, fetch)
	})
	return result.Value, err
}

func (s *Subsystem) refreshLockKey(key string) string {
	return "library-refresh:" + key
}

// claimRefresh reports whether this call is the one that gets to launch the
// background refresh for key — at most one concurrent reader wins, so N
// stale readers produce exactly one refresh, not N serialized ones.
func (s *Subsystem) claimRefresh(key string) bool {
	s.refreshingMu.Lock()
	defer s.refreshingMu.Unlock()
	if _, inFlight := s.refreshing[key]; inFlight {
		return false
	}
	s.refreshing[key] = struct{}{}
	return true
}

func (s *Subsystem) releaseRefresh(key string) {
	s.refreshingMu.Lock()
	delete(s.refreshing, key)
	s.refreshingMu.Unlock()
}

// backgroundRefresh runs detached from the request that discovered the
// stale snapshot — it uses its own short-lived context rather than the
// caller's, per the async-cancellation convention for background tasks.
func (s *Subsystem) backgroundRefresh(key string, fetch Fetcher) {
	defer s.releaseRefresh(key)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_, err := lock.WithLock(ctx, s.locks, s.refreshLockKey(key), lock.Options{}, func(ctx context.Context) (Snapshot, error) {
		return s.fetchAndStore(ctx, key, fetch)
	})
	if err != nil && err != lock.ErrTimeout {
		log.Printf("[library] background refresh of %s failed: %v", key, err)
	}
}

func (s *Subsystem) fetchAndStore(ctx context.Context, key string, fetch Fetcher) (Snapshot, error) {
	items, err := fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Items: items, FetchedAt: time.Now()}
	s.snapshots.Set(ctx, key, snap, s.ttl(), false)
	return snap, nil
}

// RefreshNow forces an unconditional foreground refresh (the `refresh`
// verb spec.md §4.5 exposes alongside TTL expiry).
func (s *Subsystem) RefreshNow(ctx context.Context, key string, fetch Fetcher) (Snapshot, error) {
	result, err := lock.WithLock(ctx, s.locks, s.refreshLockKey(key), lock.Options{}, func(ctx context.Context) (Snapshot, error) {
		return s.fetchAndStore(ctx, key, fetch)
	})
	return result.Value, err
}
