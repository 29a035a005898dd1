package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"aiostreams/models"
)

// allDebridClient implements TorrentCapable against AllDebrid's v4 API,
// grounded on the teacher's AllDebridClient: same base URL, agent
// parameter, and status/data/error response envelope, reworked onto
// TorrentCapable's method set and models.DebridDownload instead of the
// teacher's own AddMagnetResult/TorrentInfo/UnrestrictResult types.
type allDebridClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	agent      string
}

var _ TorrentCapable = (*allDebridClient)(nil)

func newAllDebridClient(apiKey string) *allDebridClient {
	return &allDebridClient{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    "https://api.alldebrid.com/v4",
		agent:      "aiostreams",
	}
}

func init() {
	RegisterProvider("alldebrid", func(apiKey string) Provider {
		return newAllDebridClient(apiKey)
	})
}

func (c *allDebridClient) Name() string { return "alldebrid" }

// allDebridEnvelope is AllDebrid's generic response wrapper.
type allDebridEnvelope struct {
	Status string          `json:"status"` // "success" or "error"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type allDebridMagnet struct {
	Magnet string `json:"magnet,omitempty"`
	Name   string `json:"name,omitempty"`
	ID     int    `json:"id,omitempty"`
	Hash   string `json:"hash,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Ready  bool   `json:"ready,omitempty"`
}

type allDebridMagnetUploadData struct {
	Magnets []allDebridMagnet `json:"magnets"`
}

type allDebridStatus struct {
	ID         int                 `json:"id"`
	Filename   string              `json:"filename"`
	Size       int64               `json:"size"`
	Hash       string              `json:"hash,omitempty"`
	StatusCode int                 `json:"statusCode"`
	Links      []allDebridLink     `json:"links,omitempty"`
	Files      []allDebridFileNode `json:"files,omitempty"` // v4.1 nested file tree
}

type allDebridLink struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// allDebridFileNode is one file or directory in the v4.1 nested file tree.
type allDebridFileNode struct {
	N string              `json:"n"`           // name
	S int64               `json:"s,omitempty"` // size (files only)
	L string              `json:"l,omitempty"` // link (files only)
	E []allDebridFileNode `json:"e,omitempty"` // entries (directories only)
}

type allDebridUnlock struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Delayed  int    `json:"delayed,omitempty"`
}

type allDebridInstantData struct {
	Magnets []struct {
		Hash    string `json:"hash"`
		Instant bool   `json:"instant"`
		Files   []struct {
			S int64 `json:"s"`
		} `json:"files,omitempty"`
	} `json:"magnets"`
}

// AllDebrid magnet status codes.
const (
	allDebridStatusInQueue             = 0
	allDebridStatusDownloading         = 1
	allDebridStatusCompressingMoving   = 2
	allDebridStatusUploading           = 3
	allDebridStatusReady               = 4
	allDebridStatusUploadFail          = 5
	allDebridStatusInternalErrorUnpack = 6
	allDebridStatusNotDownloaded20Min  = 7
	allDebridStatusFileTooBig          = 8
	allDebridStatusInternalError       = 9
	allDebridStatusDownloadTook72h     = 10
	allDebridStatusDeletedOnHoster     = 11
)

// do executes req, classifies transport/auth/rate-limit failures into a
// ProviderError, and unmarshals the envelope's data field into out.
func (c *allDebridClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Kind: FailureUnknown, Provider: "alldebrid", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ProviderError{Kind: FailureUnauthorized, Provider: "alldebrid"}
	case http.StatusTooManyRequests:
		return &ProviderError{Kind: FailureTooManyRequests, Provider: "alldebrid"}
	}

	var env allDebridEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &ProviderError{Kind: FailureUnknown, Provider: "alldebrid", Err: err}
	}
	if env.Status != "success" {
		msg := "unknown error"
		kind := FailureUnknown
		if env.Error != nil {
			msg = env.Error.Message
			if strings.Contains(env.Error.Code, "AUTH") {
				kind = FailureUnauthorized
			}
		}
		return &ProviderError{Kind: kind, Provider: "alldebrid", Err: errors.New(msg)}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// call builds and runs one form-encoded request against path.
func (c *allDebridClient) call(ctx context.Context, method, path string, form url.Values, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if len(form) > 0 {
			endpoint += "?" + form.Encode()
		}
	} else {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.do(req, out)
}

func (c *allDebridClient) ListMagnets(ctx context.Context) ([]models.DebridDownload, error) {
	var data struct {
		Magnets []allDebridStatus `json:"magnets"`
	}
	if err := c.call(ctx, http.MethodGet, "/magnet/status", url.Values{"agent": {c.agent}}, &data); err != nil {
		return nil, err
	}
	out := make([]models.DebridDownload, len(data.Magnets))
	for i, m := range data.Magnets {
		out[i] = c.toDownload(m)
	}
	return out, nil
}

func (c *allDebridClient) GetMagnet(ctx context.Context, id string) (models.DebridDownload, error) {
	var data struct {
		Magnets allDebridStatus `json:"magnets"`
	}
	if err := c.call(ctx, http.MethodGet, "/magnet/status", url.Values{"agent": {c.agent}, "id": {id}}, &data); err != nil {
		return models.DebridDownload{}, err
	}
	return c.toDownload(data.Magnets), nil
}

func (c *allDebridClient) RemoveMagnet(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/magnet/delete", url.Values{"agent": {c.agent}, "id": {id}}, nil)
}

func (c *allDebridClient) AddMagnet(ctx context.Context, magnetOrHash string) (models.DebridDownload, error) {
	magnet := magnetOrHash
	if !strings.HasPrefix(magnet, "magnet:") {
		magnet = "magnet:?xt=urn:btih:" + magnet
	}
	var data allDebridMagnetUploadData
	if err := c.call(ctx, http.MethodPost, "/magnet/upload", url.Values{"agent": {c.agent}, "magnets[]": {magnet}}, &data); err != nil {
		return models.DebridDownload{}, err
	}
	if len(data.Magnets) == 0 {
		return models.DebridDownload{}, &ProviderError{Kind: FailureUnknown, Provider: "alldebrid", Err: errors.New("no magnet data returned")}
	}
	return c.GetMagnet(ctx, strconv.Itoa(data.Magnets[0].ID))
}

func (c *allDebridClient) AddTorrent(ctx context.Context, torrentFile []byte) (models.DebridDownload, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("agent", c.agent); err != nil {
		return models.DebridDownload{}, err
	}
	part, err := writer.CreateFormFile("files[]", "upload.torrent")
	if err != nil {
		return models.DebridDownload{}, err
	}
	if _, err := part.Write(torrentFile); err != nil {
		return models.DebridDownload{}, err
	}
	if err := writer.Close(); err != nil {
		return models.DebridDownload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/magnet/upload/file", &buf)
	if err != nil {
		return models.DebridDownload{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var data allDebridMagnetUploadData
	if err := c.do(req, &data); err != nil {
		return models.DebridDownload{}, err
	}
	if len(data.Magnets) == 0 {
		return models.DebridDownload{}, &ProviderError{Kind: FailureUnknown, Provider: "alldebrid", Err: errors.New("no torrent data returned")}
	}
	return c.GetMagnet(ctx, strconv.Itoa(data.Magnets[0].ID))
}

func (c *allDebridClient) CheckMagnets(ctx context.Context, hashes []string, checkOwned bool) (map[string]CachedStatus, error) {
	return batchCheck(ctx, hashes, func(ctx context.Context, batch []string) (map[string]CachedStatus, error) {
		form := url.Values{"agent": {c.agent}}
		for _, h := range batch {
			form.Add("magnets[]", h)
		}
		var data allDebridInstantData
		if err := c.call(ctx, http.MethodPost, "/magnet/instant", form, &data); err != nil {
			return nil, err
		}
		out := make(map[string]CachedStatus, len(batch))
		for _, m := range data.Magnets {
			var size int64
			for _, f := range m.Files {
				size += f.S
			}
			hash := strings.ToLower(m.Hash)
			out[hash] = CachedStatus{Hash: hash, Cached: m.Instant, Size: size}
		}
		return out, nil
	})
}

func (c *allDebridClient) GenerateTorrentLink(ctx context.Context, download models.DebridDownload, fileIndex int) (string, error) {
	if fileIndex < 0 || fileIndex >= len(download.Files) {
		return "", &ProviderError{Kind: FailureNoMatchingFile, Provider: "alldebrid"}
	}
	link := download.Files[fileIndex].Link
	if link == "" {
		return "", &ProviderError{Kind: FailureNoMatchingFile, Provider: "alldebrid"}
	}

	var unlocked allDebridUnlock
	if err := c.call(ctx, http.MethodPost, "/link/unlock", url.Values{"agent": {c.agent}, "link": {link}}, &unlocked); err != nil {
		return "", err
	}
	if unlocked.Delayed > 0 {
		return "", &ProviderError{Kind: FailureUnknown, Provider: "alldebrid", Err: fmt.Errorf("link processing, retry in %ds", unlocked.Delayed)}
	}
	return unlocked.Link, nil
}

func (c *allDebridClient) RefreshLibraryCache(ctx context.Context) error {
	_, err := c.ListMagnets(ctx)
	return err
}

// toDownload converts one AllDebrid magnet status into the
// provider-agnostic models.DebridDownload, flattening the v4.1 nested
// file tree (or falling back to the v4 flat links list) the way the
// teacher's flattenFileTree does.
func (c *allDebridClient) toDownload(m allDebridStatus) models.DebridDownload {
	var files []models.DebridFile
	if len(m.Files) > 0 {
		next := 0
		files = flattenAllDebridFiles(m.Files, "", &next)
	} else {
		files = make([]models.DebridFile, 0, len(m.Links))
		for i, l := range m.Links {
			files = append(files, models.DebridFile{Index: i, ID: strconv.Itoa(i), Name: l.Filename, Size: l.Size, Link: l.Link})
		}
	}

	return models.DebridDownload{
		ID:     strconv.Itoa(m.ID),
		Hash:   strings.ToLower(m.Hash),
		Name:   m.Filename,
		Status: allDebridDownloadStatus(m.StatusCode),
		Size:   m.Size,
		Files:  files,
	}
}

// flattenAllDebridFiles walks the v4.1 nested file tree depth-first,
// assigning Index/ID from the shared next counter so files in different
// subdirectories still get a globally unique, stable index.
func flattenAllDebridFiles(nodes []allDebridFileNode, basePath string, next *int) []models.DebridFile {
	var out []models.DebridFile
	for _, node := range nodes {
		path := node.N
		if basePath != "" {
			path = basePath + "/" + node.N
		}
		if len(node.E) > 0 {
			out = append(out, flattenAllDebridFiles(node.E, path, next)...)
			continue
		}
		if node.L == "" {
			continue
		}
		idx := *next
		*next++
		out = append(out, models.DebridFile{Index: idx, ID: strconv.Itoa(idx), Name: path, Size: node.S, Link: node.L})
	}
	return out
}

// allDebridDownloadStatus maps one of AllDebrid's documented status codes
// to the provider-agnostic models.DownloadStatus. A code this client
// doesn't recognize is treated as an error rather than silently folded
// into "queued", so a future AllDebrid status addition surfaces as a
// visible failure instead of masquerading as still-pending.
func allDebridDownloadStatus(code int) models.DownloadStatus {
	switch code {
	case allDebridStatusInQueue:
		return models.StatusQueued
	case allDebridStatusReady:
		return models.StatusDownloaded
	case allDebridStatusDownloading, allDebridStatusCompressingMoving, allDebridStatusUploading:
		return models.StatusDownloading
	case allDebridStatusUploadFail, allDebridStatusInternalErrorUnpack,
		allDebridStatusNotDownloaded20Min, allDebridStatusFileTooBig,
		allDebridStatusInternalError, allDebridStatusDownloadTook72h,
		allDebridStatusDeletedOnHoster:
		return models.StatusError
	default:
		return models.StatusError
	}
}
