package debrid

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/javi11/nntppool"
	"github.com/javi11/nzbparser"

	"aiostreams/models"
)

// usenetProvider is a direct-NNTP UsenetCapable backend: there is no
// account-side "add and wait" step the way a hosted debrid has, so adding an
// NZB just records its parsed segment set and checking availability means
// probing the first file's first article with STAT, grounded on the
// teacher's services/usenet/service.go health-check flow.
type usenetProvider struct {
	name string
	pool nntppool.UsenetConnectionPool

	mu       sync.Mutex
	ingested map[string]models.DebridDownload
}

var _ UsenetCapable = (*usenetProvider)(nil)

// NewUsenetProvider builds a direct-NNTP provider over an already
// configured connection pool.
func NewUsenetProvider(name string, pool nntppool.UsenetConnectionPool) Provider {
	return &usenetProvider{name: name, pool: pool, ingested: map[string]models.DebridDownload{}}
}

func (p *usenetProvider) Name() string { return p.name }

func (p *usenetProvider) ListNzbs(ctx context.Context) ([]models.DebridDownload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.DebridDownload, 0, len(p.ingested))
	for _, d := range p.ingested {
		out = append(out, d)
	}
	return out, nil
}

func (p *usenetProvider) GetNzb(ctx context.Context, id string) (models.DebridDownload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.ingested[id]
	if !ok {
		return models.DebridDownload{}, &ProviderError{Kind: FailureNotFound, Provider: p.name}
	}
	return d, nil
}

func (p *usenetProvider) RemoveNzb(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ingested, id)
	return nil
}

func (p *usenetProvider) AddNzb(ctx context.Context, nzbURL string, nzbData []byte) (models.DebridDownload, error) {
	nzb, err := nzbparser.Parse(bytes.NewReader(nzbData))
	if err != nil {
		return models.DebridDownload{}, &ProviderError{Kind: FailureUnknown, Provider: p.name, Err: err}
	}
	if len(nzb.Files) == 0 {
		return models.DebridDownload{}, &ProviderError{Kind: FailureUnknown, Provider: p.name, Err: errors.New("nzb has no files")}
	}

	digest, files := digestNzb(nzb)
	download := models.DebridDownload{
		ID:     digest,
		Hash:   digest,
		Name:   nzb.Files[0].Subject,
		Status: models.StatusCached,
		Size:   sumFileSizes(files),
		Files:  files,
	}

	p.mu.Lock()
	p.ingested[digest] = download
	p.mu.Unlock()
	return download, nil
}

func (p *usenetProvider) CheckNzbs(ctx context.Context, hashes []string) (map[string]CachedStatus, error) {
	return batchCheck(ctx, hashes, func(ctx context.Context, batch []string) (map[string]CachedStatus, error) {
		var mu sync.Mutex
		out := make(map[string]CachedStatus, len(batch))
		pr := pool.New().WithContext(ctx)
		for _, hash := range batch {
			hash := hash
			pr.Go(func(ctx context.Context) error {
				p.mu.Lock()
				download, known := p.ingested[hash]
				p.mu.Unlock()
				var status CachedStatus
				if !known {
					status = CachedStatus{Hash: hash, Cached: false}
				} else {
					cached := p.probeCached(ctx, download)
					status = CachedStatus{Hash: hash, Cached: cached, Size: download.Size, Files: download.Files}
				}
				mu.Lock()
				out[hash] = status
				mu.Unlock()
				return nil
			})
		}
		_ = pr.Wait()
		return out, nil
	})
}

// probeCached stats the first file's representative article id; a missing
// article means the upload has expired off the backend's retention window.
func (p *usenetProvider) probeCached(ctx context.Context, download models.DebridDownload) bool {
	if len(download.Files) == 0 || p.pool == nil {
		return false
	}
	messageID := download.Files[0].ID
	if messageID == "" {
		return false
	}
	_, err := p.pool.Stat(ctx, messageID, nil)
	return err == nil
}

func (p *usenetProvider) GenerateUsenetLink(ctx context.Context, download models.DebridDownload, fileIndex int) (string, error) {
	if fileIndex < 0 || fileIndex >= len(download.Files) {
		return "", &ProviderError{Kind: FailureNoMatchingFile, Provider: p.name}
	}
	// Direct-NNTP streaming has no unlocked HTTP URL, so no link is
	// produced: a valid fileIndex always fails with NOT_IMPLEMENTED.
	return "", &ProviderError{Kind: FailureNotImplemented, Provider: p.name}
}

func (p *usenetProvider) RefreshLibraryCache(ctx context.Context) error {
	return nil
}

func digestNzb(nzb nzbparser.Nzb) (string, []models.DebridFile) {
	h := sha1.New()
	files := make([]models.DebridFile, 0, len(nzb.Files))
	for i, f := range nzb.Files {
		fmt.Fprintf(h, "%s:%d;", f.Subject, len(f.Segments))
		var messageID string
		var size int64
		for _, seg := range f.Segments {
			size += int64(seg.Bytes)
			fmt.Fprintf(h, "%s;", seg.Id)
			if messageID == "" {
				messageID = seg.Id
			}
		}
		files = append(files, models.DebridFile{Index: i, ID: messageID, Name: f.Subject, Size: size})
	}
	return hex.EncodeToString(h.Sum(nil)), files
}

func sumFileSizes(files []models.DebridFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
