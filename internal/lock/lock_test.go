package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithLockSingleFlight(t *testing.T) {
	m := NewManager()
	var calls int32
	var wg sync.WaitGroup

	const n = 20
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := WithLock(context.Background(), m, "shared-key", Options{Timeout: 2 * time.Second, TTL: time.Second}, func(ctx context.Context) (int, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(5 * time.Millisecond)
				return 1, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != n {
		t.Fatalf("expected %d calls (serialized, not deduplicated away), got %d", n, got)
	}
}

func TestWithLockTimeout(t *testing.T) {
	m := NewManager()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = WithLock(context.Background(), m, "k", Options{Timeout: time.Second, TTL: 5 * time.Second}, func(ctx context.Context) (struct{}, error) {
			close(started)
			<-release
			return struct{}{}, nil
		})
	}()
	<-started

	_, err := WithLock(context.Background(), m, "k", Options{Timeout: 30 * time.Millisecond, TTL: time.Second}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	close(release)
}

func TestWithLockTTLExpiryRecoversFromCrash(t *testing.T) {
	m := NewManager()
	// Simulate a holder that never releases (crashed mid-hold).
	crashed := make(chan struct{})
	go func() {
		_, _ = WithLock(context.Background(), m, "k", Options{Timeout: time.Second, TTL: 20 * time.Millisecond}, func(ctx context.Context) (struct{}, error) {
			close(crashed)
			<-make(chan struct{}) // never returns
			return struct{}{}, nil
		})
	}()
	<-crashed

	// A later caller should be able to acquire once the TTL has expired,
	// without waiting for the first holder to release.
	time.Sleep(40 * time.Millisecond)
	res, err := WithLock(context.Background(), m, "k", Options{Timeout: time.Second, TTL: time.Second}, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != "recovered" {
		t.Fatalf("expected recovered, got %q", res.Value)
	}
}
