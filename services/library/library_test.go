package library

import (
	"context"
	"testing"
	"time"

	"aiostreams/internal/cache"
	"aiostreams/internal/lock"
	"aiostreams/models"
)

func TestGetFetchesOnMissAndCachesAfter(t *testing.T) {
	store := cache.NewStore(cache.NewMemoryBackend(128))
	sub := New(store, lock.NewManager(), time.Hour, time.Minute)

	calls := 0
	fetch := func(ctx context.Context) ([]models.DebridDownload, error) {
		calls++
		return []models.DebridDownload{{ID: "1", Name: "Movie"}}, nil
	}

	snap, err := sub.Get(context.Background(), "k1", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Items) != 1 || calls != 1 {
		t.Fatalf("expected one fetch and one item, got calls=%d items=%d", calls, len(snap.Items))
	}

	if _, err := sub.Get(context.Background(), "k1", fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached hit to avoid a second fetch, calls=%d", calls)
	}
}

func TestGetStaleTriggersExactlyOneBackgroundRefresh(t *testing.T) {
	store := cache.NewStore(cache.NewMemoryBackend(128))
	sub := New(store, lock.NewManager(), time.Hour, 10*time.Millisecond)

	var calls int
	fetch := func(ctx context.Context) ([]models.DebridDownload, error) {
		calls++
		time.Sleep(20 * time.Millisecond)
		return []models.DebridDownload{{ID: "1", Name: "Movie"}}, nil
	}

	if _, err := sub.Get(context.Background(), "k2", fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond) // let it go stale

	for i := 0; i < 10; i++ {
		if _, err := sub.Get(context.Background(), "k2", fetch); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond) // let the single background refresh finish

	if calls != 2 {
		t.Fatalf("expected exactly 2 fetches (initial + one collapsed refresh), got %d", calls)
	}
}

func TestCatalogScoring(t *testing.T) {
	snap := Snapshot{Items: []models.DebridDownload{
		{Name: "Breaking Bad"},
		{Name: "Breaking Bad Season 2"},
		{Name: "Better Call Saul"},
		{Name: "Totally Unrelated Thing"},
	}}
	entries := Catalog(snap, CatalogOptions{Query: "Breaking Bad"})
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(entries))
	}
	if entries[0].Score != 110 {
		t.Fatalf("expected the exact match to score 110, got %d", entries[0].Score)
	}
}

func TestMetaSingleVideoSetsDefault(t *testing.T) {
	item := models.DebridDownload{
		Name: "Movie.2020.1080p.mkv",
		Size: 5_000_000_000,
		Files: []models.DebridFile{
			{Index: 0, Name: "Movie.2020.1080p.mkv", Size: 5_000_000_000},
		},
	}
	view := Meta(item, "realdebrid", "torrent", "abc123")
	if view.DefaultVideoID == "" {
		t.Fatalf("expected a default video id for a single-file item")
	}
	if len(view.Videos) != 1 {
		t.Fatalf("expected one video, got %d", len(view.Videos))
	}
}

func TestSearchFiltersByStatusAndTitle(t *testing.T) {
	snap := Snapshot{Items: []models.DebridDownload{
		{Hash: "a", Name: "Show.S02E05.1080p.mkv", Status: models.StatusCached},
		{Hash: "b", Name: "Show.S02E06.1080p.mkv", Status: models.StatusQueued},
		{Hash: "c", Name: "Unrelated.Movie.mkv", Status: models.StatusCached},
	}}
	season, episode := 2, 5
	results := Search(snap, models.SearchMetadata{PrimaryTitle: "Show"}, models.ParsedId{MediaKind: models.MediaSeries, Season: &season, Episode: &episode})
	if len(results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(results))
	}
	if results[0].Hash != "a" {
		t.Fatalf("expected hash 'a', got %q", results[0].Hash)
	}
	if !results[0].Confirmed || !results[0].IsLibrary {
		t.Fatalf("expected confirmed+library flags set")
	}
}
