package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"aiostreams/models"
	"aiostreams/services/addon"
)

type fakeClient struct {
	name    string
	streams []models.UnprocessedResult
	errs    []models.AddonError
	delay   time.Duration
}

func (f *fakeClient) Name() string                     { return f.name }
func (f *fakeClient) ID() string                        { return f.name }
func (f *fakeClient) Capabilities() []addon.Capability { return []addon.Capability{addon.CapabilityStreams} }
func (f *fakeClient) GetStreams(ctx context.Context, mediaType, id string) addon.StreamsResult {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return addon.StreamsResult{Streams: f.streams, Errors: f.errs}
}

func TestResolveSettlesAllSourcesAndKeepsGoodOnesOnFailure(t *testing.T) {
	good := &fakeClient{name: "good", streams: []models.UnprocessedResult{{Kind: models.KindTorrent, Hash: "a"}}}
	bad := &fakeClient{name: "bad", errs: []models.AddonError{{AddonName: "bad", Kind: "timeout", Description: "boom"}}}

	agg := New(
		[]addon.Client{good, bad},
		func(ctx context.Context, id models.ParsedId) (models.SearchMetadata, error) {
			return models.SearchMetadata{PrimaryTitle: "Movie"}, nil
		},
		func(ctx context.Context, metadata models.SearchMetadata, id models.ParsedId) ([]models.UnprocessedResult, error) {
			return []models.UnprocessedResult{{Kind: models.KindDebrid, Hash: "lib", IsLibrary: true}}, nil
		},
		5*time.Second,
	)

	res := agg.Resolve(context.Background(), Request{MediaType: "movie", ParsedID: models.ParsedId{Namespace: models.NamespaceIMDB, Value: "tt123", MediaKind: models.MediaMovie}})
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 surviving candidates (good addon + library), got %d", len(res.Candidates))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected exactly 1 error from the bad addon, got %d", len(res.Errors))
	}
	if res.CorrelationID == "" {
		t.Fatalf("expected a non-empty correlation id")
	}
}

func TestResolveReturnsMetadataErrorWithoutPanicking(t *testing.T) {
	agg := New(
		nil,
		func(ctx context.Context, id models.ParsedId) (models.SearchMetadata, error) {
			return models.SearchMetadata{}, errors.New("upstream metadata provider down")
		},
		func(ctx context.Context, metadata models.SearchMetadata, id models.ParsedId) ([]models.UnprocessedResult, error) {
			return nil, nil
		},
		time.Second,
	)

	res := agg.Resolve(context.Background(), Request{MediaType: "movie", ParsedID: models.ParsedId{Namespace: models.NamespaceIMDB, Value: "tt999"}})
	if len(res.Candidates) != 0 {
		t.Fatalf("expected no candidates when metadata lookup fails")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected one error describing the metadata failure, got %d", len(res.Errors))
	}
}
