package addon

import (
	"context"
	"testing"

	"aiostreams/models"
)

type stubClient struct {
	result StreamsResult
}

func (s stubClient) Name() string               { return "stub" }
func (s stubClient) ID() string                 { return "stub" }
func (s stubClient) Capabilities() []Capability { return []Capability{CapabilityStreams} }
func (s stubClient) GetStreams(ctx context.Context, mediaType, id string) StreamsResult {
	return s.result
}

func TestScopedClientDropsDisallowedMediaType(t *testing.T) {
	base := stubClient{result: StreamsResult{Streams: []models.UnprocessedResult{{Kind: models.KindDebrid, Hash: "a"}}}}
	scoped := NewScopedClient(base, []string{"movie"}, nil)

	result := scoped.GetStreams(context.Background(), "series", "tt1")
	if len(result.Streams) != 0 {
		t.Fatalf("expected no streams for a media type outside the allow-list, got %d", len(result.Streams))
	}

	result = scoped.GetStreams(context.Background(), "movie", "tt1")
	if len(result.Streams) != 1 {
		t.Fatalf("expected streams through for an allowed media type, got %d", len(result.Streams))
	}
}

func TestScopedClientFiltersBySourceKind(t *testing.T) {
	base := stubClient{result: StreamsResult{Streams: []models.UnprocessedResult{
		{Kind: models.KindDebrid, Hash: "a"},
		{Kind: models.KindP2P, Hash: "b"},
	}}}
	scoped := NewScopedClient(base, nil, []string{"debrid"})

	result := scoped.GetStreams(context.Background(), "movie", "tt1")
	if len(result.Streams) != 1 || result.Streams[0].Kind != models.KindDebrid {
		t.Fatalf("expected only the debrid-kind stream to survive, got %+v", result.Streams)
	}
}

func TestNewScopedClientReturnsUnderlyingClientWhenUnrestricted(t *testing.T) {
	base := &stubClient{}
	if NewScopedClient(base, nil, nil) != Client(base) {
		t.Fatalf("expected an unrestricted wrap to return the underlying client unchanged")
	}
}
