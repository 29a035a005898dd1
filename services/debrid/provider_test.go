package debrid

import (
	"context"
	"sync"
	"testing"
)

type fakeProvider struct{ name string }

func (f *fakeProvider) Name() string { return f.name }

func TestRegisterAndNew(t *testing.T) {
	RegisterProvider("fake-test-provider", func(credential string) Provider {
		return &fakeProvider{name: "fake-test-provider:" + credential}
	})

	p, err := New("fake-test-provider", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "fake-test-provider:secret" {
		t.Fatalf("unexpected provider name: %s", p.Name())
	}

	if _, err := New("does-not-exist", ""); err == nil {
		t.Fatalf("expected error for unregistered provider")
	}
}

func TestProviderErrorRetryable(t *testing.T) {
	err := &ProviderError{Kind: FailureTooManyRequests, Provider: "x"}
	if !err.Retryable() {
		t.Fatalf("TOO_MANY_REQUESTS should be retryable")
	}
	if (&ProviderError{Kind: FailureUnauthorized, Provider: "x"}).Retryable() {
		t.Fatalf("UNAUTHORIZED should not be retryable")
	}
}

func TestBatchCheckSplitsAndMerges(t *testing.T) {
	hashes := make([]string, 1200)
	for i := range hashes {
		hashes[i] = string(rune('a' + i%26))
	}

	var mu sync.Mutex
	var batchSizes []int
	result, err := batchCheck(context.Background(), hashes, func(ctx context.Context, batch []string) (map[string]CachedStatus, error) {
		mu.Lock()
		batchSizes = append(batchSizes, len(batch))
		mu.Unlock()
		out := make(map[string]CachedStatus, len(batch))
		for _, h := range batch {
			out[h] = CachedStatus{Hash: h, Cached: true}
		}
		return out, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) == 0 {
		t.Fatalf("expected merged results")
	}
	for _, n := range batchSizes {
		if n > maxBatchSize {
			t.Fatalf("batch of %d exceeds maxBatchSize %d", n, maxBatchSize)
		}
	}
}
