// Package playback implements the PlaybackResolver (C11): it turns a
// PlaybackInfo into a final playback URL, lazily adding the torrent/NZB
// to the underlying debrid provider, polling until it's downloaded, and
// selecting the right file, per spec.md §4.11.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"aiostreams/internal/cache"
	"aiostreams/internal/fileselector"
	"aiostreams/internal/lock"
	"aiostreams/models"
	"aiostreams/services/debrid"
)

// pollInterval/maxPollAttempts give a ~110s hard ceiling on cache-and-play
// polling, matching spec.md §5's cancellation budget.
const (
	pollInterval    = 11 * time.Second
	maxPollAttempts = 10
	nullCacheWindow = 60 * time.Second
)

// ErrNotDownloaded is returned when cache-and-play polling exhausts its
// budget without the item reaching [downloaded].
var ErrNotDownloaded = errors.New("playback: item did not finish downloading in time")

// Resolver resolves PlaybackInfo values into playback URLs against one
// configured Provider.
type Resolver struct {
	provider            debrid.Provider
	locks               *lock.Manager
	linkCache           cache.Typed[*string]
	linkTTL             time.Duration
	autoRemoveDownloads bool
	httpClient          *http.Client
}

func New(provider debrid.Provider, locks *lock.Manager, store *cache.Store, linkTTL time.Duration, autoRemoveDownloads bool) *Resolver {
	return &Resolver{
		provider:            provider,
		locks:               locks,
		linkCache:           cache.NewTyped[*string](store, "playback-link"),
		linkTTL:             linkTTL,
		autoRemoveDownloads: autoRemoveDownloads,
		httpClient:          &http.Client{Timeout: 30 * time.Second},
	}
}

// cacheKey implements spec.md §4.11 step 1's lock/cache key composition.
func cacheKey(info models.PlaybackInfo, credentialHash string) string {
	season, episode := -1, -1
	if info.Metadata != nil {
		if info.Metadata.Season != nil {
			season = *info.Metadata.Season
		}
		if info.Metadata.Episode != nil {
			episode = *info.Metadata.Episode
		}
	}
	return fmt.Sprintf("playback|%s|%s|%s|%d|%d|%s", info.Hash, credentialHash, info.Filename, season, episode, info.Type)
}

// Resolve runs the full §4.11 algorithm. An empty string with no error
// means "∅": not yet cached, not an error condition.
func (r *Resolver) Resolve(ctx context.Context, info models.PlaybackInfo, credentialHash string, cacheAndPlay bool) (string, error) {
	key := cacheKey(info, credentialHash)

	result, err := lock.WithLock(ctx, r.locks, key, lock.Options{}, func(ctx context.Context) (string, error) {
		if cached, ok := r.linkCache.Get(ctx, key); ok {
			if cached == nil {
				if !cacheAndPlay {
					return "", nil // ∅
				}
			} else {
				return *cached, nil
			}
		}

		item, err := r.obtainItem(ctx, info)
		if err != nil {
			return "", err
		}

		if item.Status != models.StatusDownloaded {
			r.linkCache.Set(ctx, key, nil, nullCacheWindow, false)
			if !cacheAndPlay {
				return "", nil // ∅
			}
			item, err = r.pollUntilDownloaded(ctx, item.ID)
			if err != nil {
				return "", err
			}
		}

		file, err := r.selectFile(info, item)
		if err != nil {
			return "", err
		}

		link, err := r.generateLink(ctx, info, item, file)
		if err != nil {
			return "", err
		}

		r.linkCache.Set(ctx, key, &link, r.linkTTL, false)

		if r.autoRemoveDownloads && !info.Private && info.ServiceItemID == "" {
			r.fireAndForgetRemove(item)
		}
		return link, nil
	})
	if err != nil {
		return "", err
	}
	return result.Value, nil
}

// obtainItem implements step 2: fetch the item directly if its id is
// already known, add the torrent file if a download URL is available,
// or fall back to constructing a magnet from the hash.
func (r *Resolver) obtainItem(ctx context.Context, info models.PlaybackInfo) (models.DebridDownload, error) {
	torrentCapable, isTorrent := r.provider.(debrid.TorrentCapable)
	usenetCapable, isUsenet := r.provider.(debrid.UsenetCapable)

	switch {
	case info.ServiceItemID != "" && isTorrent:
		return torrentCapable.GetMagnet(ctx, info.ServiceItemID)
	case info.ServiceItemID != "" && isUsenet:
		return usenetCapable.GetNzb(ctx, info.ServiceItemID)
	case info.DownloadURL != "" && isTorrent:
		data, err := r.fetchTorrentFile(ctx, info.DownloadURL)
		if err != nil {
			return models.DebridDownload{}, err
		}
		return torrentCapable.AddTorrent(ctx, data)
	case info.NZB != "" && isUsenet:
		return usenetCapable.AddNzb(ctx, "", []byte(info.NZB))
	case isTorrent:
		return torrentCapable.AddMagnet(ctx, magnetFromHash(info.Hash, info.Sources))
	default:
		return models.DebridDownload{}, &debrid.ProviderError{Kind: debrid.FailureNotImplemented, Provider: r.provider.Name(), Err: errors.New("provider supports neither torrents nor usenet")}
	}
}

// fetchTorrentFile downloads the .torrent payload at url, grounded on the
// teacher's services/debrid/playback.go downloadTorrentFile helper.
func (r *Resolver) fetchTorrentFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &debrid.ProviderError{Kind: debrid.FailureUnknown, Provider: r.provider.Name(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &debrid.ProviderError{Kind: debrid.FailureUnknown, Provider: r.provider.Name(), Err: fmt.Errorf("torrent download http %d", resp.StatusCode)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func magnetFromHash(hash string, trackers []string) string {
	magnet := "magnet:?xt=urn:btih:" + hash
	for _, tr := range trackers {
		magnet += "&tr=" + tr
	}
	return magnet
}

// pollUntilDownloaded implements step 3's cache-and-play loop: poll every
// ~11s for up to 10 iterations, stopping at the first [downloaded] state.
func (r *Resolver) pollUntilDownloaded(ctx context.Context, itemID string) (models.DebridDownload, error) {
	torrentCapable, isTorrent := r.provider.(debrid.TorrentCapable)
	usenetCapable, isUsenet := r.provider.(debrid.UsenetCapable)

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return models.DebridDownload{}, ctx.Err()
		case <-time.After(pollInterval):
		}

		var (
			item models.DebridDownload
			err  error
		)
		switch {
		case isTorrent:
			item, err = torrentCapable.GetMagnet(ctx, itemID)
		case isUsenet:
			item, err = usenetCapable.GetNzb(ctx, itemID)
		default:
			return models.DebridDownload{}, fmt.Errorf("provider %s supports neither torrents nor usenet", r.provider.Name())
		}
		if err != nil {
			return models.DebridDownload{}, err
		}
		if item.Status == models.StatusError {
			return models.DebridDownload{}, &debrid.ProviderError{Kind: debrid.FailureUnknown, Provider: r.provider.Name(), Err: errors.New("item entered error state")}
		}
		if item.Status == models.StatusDownloaded {
			return item, nil
		}
	}
	return models.DebridDownload{}, ErrNotDownloaded
}

// selectFile implements step 4: honor an explicit fileIndex/filename or
// fall back to FileSelector.
func (r *Resolver) selectFile(info models.PlaybackInfo, item models.DebridDownload) (models.DebridFile, error) {
	if info.FileIndex != nil {
		for _, f := range item.Files {
			if f.Index == *info.FileIndex {
				return f, nil
			}
		}
		return models.DebridFile{}, &debrid.ProviderError{Kind: debrid.FailureNoMatchingFile, Provider: r.provider.Name(), Err: fmt.Errorf("fileIndex %d not found", *info.FileIndex)}
	}

	candidates := make([]fileselector.Candidate, len(item.Files))
	for i, f := range item.Files {
		candidates[i] = fileselector.Candidate{Index: f.Index, Filename: f.Name, Size: f.Size}
	}
	req := fileselector.Request{ChosenFilename: info.Filename}
	if info.Index != nil {
		req.ChosenIndex = info.Index
	}
	chosen, err := fileselector.Select(candidates, req)
	if err != nil {
		return models.DebridFile{}, &debrid.ProviderError{Kind: debrid.FailureNoMatchingFile, Provider: r.provider.Name(), Err: err}
	}
	for _, f := range item.Files {
		if f.Index == chosen.Index {
			return f, nil
		}
	}
	return models.DebridFile{}, &debrid.ProviderError{Kind: debrid.FailureNoMatchingFile, Provider: r.provider.Name(), Err: errors.New("selected file vanished from item")}
}

// generateLink implements step 5.
func (r *Resolver) generateLink(ctx context.Context, info models.PlaybackInfo, item models.DebridDownload, file models.DebridFile) (string, error) {
	if torrentCapable, ok := r.provider.(debrid.TorrentCapable); ok && info.Type == models.KindTorrent {
		return torrentCapable.GenerateTorrentLink(ctx, item, file.Index)
	}
	if usenetCapable, ok := r.provider.(debrid.UsenetCapable); ok && info.Type == models.KindUsenet {
		return usenetCapable.GenerateUsenetLink(ctx, item, file.Index)
	}
	return "", &debrid.ProviderError{Kind: debrid.FailureNotImplemented, Provider: r.provider.Name(), Err: fmt.Errorf("no link generator for type %s", info.Type)}
}

// fireAndForgetRemove implements step 6: best-effort cleanup of transient
// downloads, errors logged and never surfaced to the caller.
func (r *Resolver) fireAndForgetRemove(item models.DebridDownload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var err error
		if torrentCapable, ok := r.provider.(debrid.TorrentCapable); ok {
			err = torrentCapable.RemoveMagnet(ctx, item.ID)
		} else if usenetCapable, ok := r.provider.(debrid.UsenetCapable); ok {
			err = usenetCapable.RemoveNzb(ctx, item.ID)
		}
		if err != nil {
			log.Printf("[playback] auto-remove failed for %s: %v", item.ID, err)
		}
	}()
}
