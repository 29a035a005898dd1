package debrid

import (
	"context"
	"errors"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc/pool"
)

// maxBatchSize is the largest number of hashes a single upstream
// availability call may carry (spec.md §4.5: "batches into sub-batches of
// <= 500 hashes; per-batch requests run in parallel").
const maxBatchSize = 500

// batchCheck splits hashes into <=maxBatchSize groups, runs check over each
// group concurrently, and merges the results. check is retried with backoff
// when it reports a TOO_MANY_REQUESTS ProviderError; any other error fails
// that batch without aborting the others — a non-retryable failure in one
// batch still lets every other batch's results come back. batchCheck only
// returns an error when every batch failed; otherwise it returns whatever
// batches did succeed.
func batchCheck(ctx context.Context, hashes []string, check func(ctx context.Context, batch []string) (map[string]CachedStatus, error)) (map[string]CachedStatus, error) {
	batches := chunk(hashes, maxBatchSize)
	results := make([]map[string]CachedStatus, len(batches))
	errs := make([]error, len(batches))

	p := pool.New().WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		p.Go(func(ctx context.Context) error {
			out, err := retry.DoWithData(
				func() (map[string]CachedStatus, error) { return check(ctx, batch) },
				retry.Context(ctx),
				retry.Attempts(4),
				retry.RetryIf(func(err error) bool {
					var perr *ProviderError
					return errors.As(err, &perr) && perr.Retryable()
				}),
			)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = out
			return nil
		})
	}
	_ = p.Wait()

	merged := make(map[string]CachedStatus, len(hashes))
	var failed int
	for i, r := range results {
		if errs[i] != nil {
			failed++
			continue
		}
		for hash, status := range r {
			merged[hash] = status
		}
	}
	if failed == len(batches) && failed > 0 {
		return nil, errors.Join(errs...)
	}
	return merged, nil
}

func chunk(items []string, size int) [][]string {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	var out [][]string
	for len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
