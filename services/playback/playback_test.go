package playback

import (
	"context"
	"testing"
	"time"

	"aiostreams/internal/cache"
	"aiostreams/internal/lock"
	"aiostreams/models"
	"aiostreams/services/debrid"
)

type fakeTorrentProvider struct {
	name      string
	downloads map[string]models.DebridDownload
	addCalls  int
}

func (f *fakeTorrentProvider) Name() string { return f.name }

func (f *fakeTorrentProvider) ListMagnets(ctx context.Context) ([]models.DebridDownload, error) {
	return nil, nil
}

func (f *fakeTorrentProvider) GetMagnet(ctx context.Context, id string) (models.DebridDownload, error) {
	d, ok := f.downloads[id]
	if !ok {
		return models.DebridDownload{}, &debrid.ProviderError{Kind: debrid.FailureNotFound, Provider: f.name}
	}
	return d, nil
}

func (f *fakeTorrentProvider) RemoveMagnet(ctx context.Context, id string) error {
	delete(f.downloads, id)
	return nil
}

func (f *fakeTorrentProvider) AddMagnet(ctx context.Context, magnetOrHash string) (models.DebridDownload, error) {
	f.addCalls++
	d := models.DebridDownload{
		ID:     "item1",
		Status: models.StatusDownloaded,
		Files:  []models.DebridFile{{Index: 0, Name: "Movie.mkv", Size: 100, Link: "link0"}},
	}
	f.downloads["item1"] = d
	return d, nil
}

func (f *fakeTorrentProvider) AddTorrent(ctx context.Context, torrentFile []byte) (models.DebridDownload, error) {
	return f.AddMagnet(ctx, "")
}

func (f *fakeTorrentProvider) CheckMagnets(ctx context.Context, hashes []string, checkOwned bool) (map[string]debrid.CachedStatus, error) {
	return nil, nil
}

func (f *fakeTorrentProvider) GenerateTorrentLink(ctx context.Context, download models.DebridDownload, fileIndex int) (string, error) {
	return "https://unlocked.example/" + download.Files[fileIndex].Name, nil
}

func (f *fakeTorrentProvider) RefreshLibraryCache(ctx context.Context) error { return nil }

func newResolver(provider debrid.Provider) *Resolver {
	store := cache.NewStore(cache.NewMemoryBackend(64))
	return New(provider, lock.NewManager(), store, time.Hour, false)
}

func TestResolveAddsMagnetAndReturnsLink(t *testing.T) {
	provider := &fakeTorrentProvider{name: "fake", downloads: map[string]models.DebridDownload{}}
	resolver := newResolver(provider)

	url, err := resolver.Resolve(context.Background(), models.PlaybackInfo{Type: models.KindTorrent, Hash: "abc123"}, "cred", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url == "" {
		t.Fatalf("expected a non-empty playback url once item is already downloaded")
	}
	if provider.addCalls != 1 {
		t.Fatalf("expected exactly one AddMagnet call, got %d", provider.addCalls)
	}
}

func TestResolveReturnsEmptyWhenNotCachedAndNotCacheAndPlay(t *testing.T) {
	provider := &fakeTorrentProvider{name: "fake", downloads: map[string]models.DebridDownload{
		"srv1": {ID: "srv1", Status: models.StatusDownloading},
	}}
	resolver := newResolver(provider)

	url, err := resolver.Resolve(context.Background(), models.PlaybackInfo{Type: models.KindTorrent, Hash: "abc", ServiceItemID: "srv1"}, "cred", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "" {
		t.Fatalf("expected empty url (not yet cached, cacheAndPlay=false), got %q", url)
	}
}

func TestResolveCachesLinkOnSecondCall(t *testing.T) {
	provider := &fakeTorrentProvider{name: "fake", downloads: map[string]models.DebridDownload{}}
	resolver := newResolver(provider)

	info := models.PlaybackInfo{Type: models.KindTorrent, Hash: "abc123"}
	first, err := resolver.Resolve(context.Background(), info, "cred", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), info, "cred", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached link to be reused: %q vs %q", first, second)
	}
	if provider.addCalls != 1 {
		t.Fatalf("expected AddMagnet called only once across both resolves, got %d", provider.addCalls)
	}
}
