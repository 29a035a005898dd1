package addon

import (
	"context"

	"aiostreams/models"
)

// ScopedClient restricts an underlying Client to a subset of media types
// and/or source kinds, implementing the "mediaTypes?[]" / "sources?[]"
// per-addon-preset config fields (spec.md §6) without teaching the
// protocol client itself about per-user scoping.
type ScopedClient struct {
	Client
	mediaTypes map[string]struct{}
	sources    map[models.StreamKind]struct{}
}

// NewScopedClient wraps client so GetStreams short-circuits to an empty
// result for media types or stream kinds the caller didn't opt into. A
// nil/empty mediaTypes or sources list means "no restriction".
func NewScopedClient(client Client, mediaTypes, sources []string) Client {
	if len(mediaTypes) == 0 && len(sources) == 0 {
		return client
	}
	sc := &ScopedClient{Client: client, mediaTypes: toSet(mediaTypes)}
	if len(sources) > 0 {
		sc.sources = make(map[models.StreamKind]struct{}, len(sources))
		for _, s := range sources {
			sc.sources[models.StreamKind(s)] = struct{}{}
		}
	}
	return sc
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (s *ScopedClient) GetStreams(ctx context.Context, mediaType, id string) StreamsResult {
	if s.mediaTypes != nil {
		if _, ok := s.mediaTypes[mediaType]; !ok {
			return StreamsResult{}
		}
	}
	result := s.Client.GetStreams(ctx, mediaType, id)
	if s.sources == nil {
		return result
	}
	filtered := make([]models.UnprocessedResult, 0, len(result.Streams))
	for _, stream := range result.Streams {
		if _, ok := s.sources[stream.Kind]; ok {
			filtered = append(filtered, stream)
		}
	}
	result.Streams = filtered
	return result
}
