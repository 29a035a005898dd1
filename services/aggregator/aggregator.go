// Package aggregator implements the Aggregator (C9): it fans a stream
// request out across every configured AddonClient plus the
// LibrarySubsystem, waits for all of them to settle, and concatenates
// whatever came back — one addon erroring never drops the others
// (spec.md §4.9).
package aggregator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"aiostreams/internal/idparser"
	"aiostreams/models"
	"aiostreams/services/addon"
)

// MetadataLookup resolves the SearchMetadata a ParsedId addresses. It is
// expected to cache internally so that N addon calls for the same request
// only trigger one upstream metadata fetch (spec.md §4.9 step 1).
type MetadataLookup func(ctx context.Context, id models.ParsedId) (models.SearchMetadata, error)

// LibrarySearch runs the LibrarySubsystem's owned-item search for one
// request (spec.md §4.6 Search, folded into the fan-out as one more
// source alongside the configured addons).
type LibrarySearch func(ctx context.Context, metadata models.SearchMetadata, id models.ParsedId) ([]models.UnprocessedResult, error)

// Request is one resolved stream request: a parsed id plus the media
// type string Stremio's /stream/:type/:id route carries.
type Request struct {
	MediaType string
	ParsedID  models.ParsedId
}

// Result is the Aggregator's settled-all output: every candidate any
// source returned, plus every per-source error, tagged with a
// correlation id for tracing one request across logs.
type Result struct {
	CorrelationID string
	Metadata      models.SearchMetadata
	Candidates    []models.UnprocessedResult
	Errors        []models.AddonError
}

// Aggregator owns the configured addon set and the per-request timeout
// budget each addon call gets.
type Aggregator struct {
	clients       []addon.Client
	metadata      MetadataLookup
	librarySearch LibrarySearch
	addonTimeout  time.Duration
}

func New(clients []addon.Client, metadata MetadataLookup, librarySearch LibrarySearch, addonTimeout time.Duration) *Aggregator {
	if addonTimeout <= 0 {
		addonTimeout = 15 * time.Second
	}
	return &Aggregator{clients: clients, metadata: metadata, librarySearch: librarySearch, addonTimeout: addonTimeout}
}

// Resolve runs req against every addon plus the library concurrently and
// returns once all of them have settled (successfully or not). It never
// returns an error itself: upstream failures travel as Result.Errors so a
// single broken addon can't fail the whole request.
func (a *Aggregator) Resolve(ctx context.Context, req Request) Result {
	correlationID := uuid.NewString()

	metadata, err := a.metadata(ctx, req.ParsedID)
	if err != nil {
		return Result{
			CorrelationID: correlationID,
			Errors:        []models.AddonError{{AddonName: "metadata", Kind: "metadata_lookup_failed", Description: err.Error()}},
		}
	}

	type partial struct {
		streams []models.UnprocessedResult
		errs    []models.AddonError
	}
	partials := make([]partial, len(a.clients)+1)

	p := pool.New().WithMaxGoroutines(maxConcurrency(len(a.clients) + 1))
	for i, client := range a.clients {
		i, client := i, client
		p.Go(func() {
			callCtx, cancel := context.WithTimeout(ctx, a.addonTimeout)
			defer cancel()
			res := client.GetStreams(callCtx, req.MediaType, idOf(req.ParsedID))
			partials[i] = partial{streams: res.Streams, errs: res.Errors}
		})
	}

	libIdx := len(a.clients)
	p.Go(func() {
		streams, err := a.librarySearch(ctx, metadata, req.ParsedID)
		if err != nil {
			partials[libIdx] = partial{errs: []models.AddonError{{AddonName: "library", Kind: "library_search_failed", Description: err.Error()}}}
			return
		}
		partials[libIdx] = partial{streams: streams}
	})
	p.Wait()

	result := Result{CorrelationID: correlationID, Metadata: metadata}
	for _, part := range partials {
		result.Candidates = append(result.Candidates, part.streams...)
		result.Errors = append(result.Errors, part.errs...)
	}
	return result
}

func maxConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func idOf(p models.ParsedId) string {
	return idparser.Canonical(p)
}
