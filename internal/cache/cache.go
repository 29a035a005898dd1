// Package cache implements the keyed TTL store described in spec.md C1:
// a namespaced get/set/delete store where every operation is non-throwing
// and stale entries can be served while a background refresh runs.
package cache

import (
	"context"
	"time"
)

// Entry is what a Backend stores per key. ExpiresAt is absolute; Stored is
// when the entry was written, needed to compute staleness independently of
// the configured TTL (a caller may shrink/grow TTLs between writes).
type Entry struct {
	Value     []byte
	Stored    time.Time
	ExpiresAt time.Time
}

// Backend is the storage tier a Store multiplexes over. Implementations
// must never return an error that the caller is expected to propagate to
// its own caller: backend failures degrade to a cache miss. Backend.Get
// still returns an error so Store can log it, but Store itself never
// surfaces backend errors to its own API.
type Backend interface {
	Get(ctx context.Context, namespace, key string) (Entry, bool, error)
	Set(ctx context.Context, namespace, key string, e Entry) error
	Delete(ctx context.Context, namespace, key string) error
	Clear(ctx context.Context, namespace string) error
}

// NoopBackend drops everything. Used when a configured backend fails to
// initialize; the cache keeps working as an always-miss cache rather than
// taking the process down (§4.1 failure model: all operations non-throwing).
type NoopBackend struct{}

func (NoopBackend) Get(context.Context, string, string) (Entry, bool, error) { return Entry{}, false, nil }
func (NoopBackend) Set(context.Context, string, string, Entry) error         { return nil }
func (NoopBackend) Delete(context.Context, string, string) error            { return nil }
func (NoopBackend) Clear(context.Context, string) error                     { return nil }
