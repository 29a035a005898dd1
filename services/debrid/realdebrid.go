package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"aiostreams/models"
)

// restClient is a minimal JSON-over-HTTP provider adapter, grounded on the
// teacher's AllDebridClient: one small HTTP client, one base URL, bearer
// auth, and a generic response envelope per upstream.
type restClient struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ TorrentCapable = (*restClient)(nil)

func newRestClient(name, apiKey, baseURL string) *restClient {
	return &restClient{
		name:       name,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func init() {
	RegisterProvider("realdebrid", func(apiKey string) Provider {
		return newRestClient("realdebrid", apiKey, "https://api.real-debrid.com/rest/1.0")
	})
	RegisterProvider("torbox", func(apiKey string) Provider {
		return newRestClient("torbox", apiKey, "https://api.torbox.app/v1/api")
	})
}

func (c *restClient) Name() string { return c.name }

type restTorrentInfo struct {
	ID       string   `json:"id"`
	Hash     string   `json:"hash"`
	Filename string   `json:"filename"`
	Bytes    int64    `json:"bytes"`
	Status   string   `json:"status"`
	Links    []string `json:"links"`
	Files    []struct {
		ID       int    `json:"id"`
		Path     string `json:"path"`
		Bytes    int64  `json:"bytes"`
		Selected int    `json:"selected"`
	} `json:"files"`
}

func restStatusToDownloadStatus(status string) models.DownloadStatus {
	switch status {
	case "downloaded", "finished":
		return models.StatusDownloaded
	case "downloading", "magnet_conversion", "queued", "waiting_files_selection":
		return models.StatusDownloading
	case "error", "dead", "virus":
		return models.StatusError
	default:
		return models.StatusQueued
	}
}

func (info restTorrentInfo) toDownload() models.DebridDownload {
	files := make([]models.DebridFile, 0, len(info.Files))
	selected := 0
	for i, f := range info.Files {
		if f.Selected == 0 {
			continue
		}
		var link string
		if selected < len(info.Links) {
			link = info.Links[selected]
		}
		selected++
		files = append(files, models.DebridFile{Index: i, ID: strconv.Itoa(f.ID), Name: f.Path, Size: f.Bytes, Link: link})
	}
	return models.DebridDownload{
		ID:     info.ID,
		Hash:   strings.ToLower(info.Hash),
		Name:   info.Filename,
		Status: restStatusToDownloadStatus(info.Status),
		Size:   info.Bytes,
		Files:  files,
	}
}

func (c *restClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	return c.doWithContentType(ctx, method, path, body, "application/x-www-form-urlencoded", out)
}

func (c *restClient) doWithContentType(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Kind: FailureUnknown, Provider: c.name, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ProviderError{Kind: FailureUnauthorized, Provider: c.name}
	case http.StatusTooManyRequests:
		return &ProviderError{Kind: FailureTooManyRequests, Provider: c.name}
	case http.StatusNotFound:
		return &ProviderError{Kind: FailureNotFound, Provider: c.name}
	case 509: // bandwidth/store limit, used by several debrid APIs
		return &ProviderError{Kind: FailureStoreLimitExceeded, Provider: c.name}
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return &ProviderError{Kind: FailureUnknown, Provider: c.name, Err: fmt.Errorf("http %d: %s", resp.StatusCode, data)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *restClient) ListMagnets(ctx context.Context) ([]models.DebridDownload, error) {
	var infos []restTorrentInfo
	if err := c.do(ctx, http.MethodGet, "/torrents", nil, &infos); err != nil {
		return nil, err
	}
	out := make([]models.DebridDownload, len(infos))
	for i, info := range infos {
		out[i] = info.toDownload()
	}
	return out, nil
}

func (c *restClient) GetMagnet(ctx context.Context, id string) (models.DebridDownload, error) {
	var info restTorrentInfo
	if err := c.do(ctx, http.MethodGet, "/torrents/info/"+id, nil, &info); err != nil {
		return models.DebridDownload{}, err
	}
	return info.toDownload(), nil
}

func (c *restClient) RemoveMagnet(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/torrents/delete/"+id, nil, nil)
}

func (c *restClient) AddMagnet(ctx context.Context, magnetOrHash string) (models.DebridDownload, error) {
	magnet := magnetOrHash
	if !strings.HasPrefix(magnet, "magnet:") {
		magnet = "magnet:?xt=urn:btih:" + magnet
	}
	form := strings.NewReader("magnet=" + magnet)
	var added struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/torrents/addMagnet", form, &added); err != nil {
		return models.DebridDownload{}, err
	}
	return c.GetMagnet(ctx, added.ID)
}

func (c *restClient) AddTorrent(ctx context.Context, torrentFile []byte) (models.DebridDownload, error) {
	var added struct {
		ID string `json:"id"`
	}
	if err := c.doWithContentType(ctx, http.MethodPut, "/torrents/addTorrent", bytes.NewReader(torrentFile), "application/octet-stream", &added); err != nil {
		return models.DebridDownload{}, err
	}
	return c.GetMagnet(ctx, added.ID)
}

func (c *restClient) CheckMagnets(ctx context.Context, hashes []string, checkOwned bool) (map[string]CachedStatus, error) {
	return batchCheck(ctx, hashes, func(ctx context.Context, batch []string) (map[string]CachedStatus, error) {
		var instant map[string]struct {
			Cached bool  `json:"cached"`
			Size   int64 `json:"size"`
		}
		body := strings.NewReader("hashes=" + strings.Join(batch, ","))
		if err := c.do(ctx, http.MethodPost, "/torrents/instantAvailability", body, &instant); err != nil {
			return nil, err
		}
		out := make(map[string]CachedStatus, len(batch))
		for _, hash := range batch {
			entry := instant[strings.ToLower(hash)]
			out[hash] = CachedStatus{Hash: hash, Cached: entry.Cached, Size: entry.Size}
		}
		return out, nil
	})
}

func (c *restClient) GenerateTorrentLink(ctx context.Context, download models.DebridDownload, fileIndex int) (string, error) {
	if fileIndex < 0 || fileIndex >= len(download.Files) {
		return "", &ProviderError{Kind: FailureNoMatchingFile, Provider: c.name}
	}
	var unlocked struct {
		Download string `json:"download"`
	}
	link := download.Files[fileIndex].Link
	if link == "" {
		return "", &ProviderError{Kind: FailureNoMatchingFile, Provider: c.name}
	}
	body := strings.NewReader("link=" + link)
	if err := c.do(ctx, http.MethodPost, "/unrestrict/link", body, &unlocked); err != nil {
		return "", err
	}
	return unlocked.Download, nil
}

func (c *restClient) RefreshLibraryCache(ctx context.Context) error {
	_, err := c.ListMagnets(ctx)
	return err
}
