package addon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"aiostreams/models"
)

// defaultTransport enables HTTP/2 for outbound addon requests — upstream
// Stremio addons commonly speak h2, and http.DefaultTransport only
// negotiates it opportunistically via TLS NextProtos, not guaranteed
// across every *http.Client built fresh per instance.
func defaultTransport() http.RoundTripper {
	transport := &http.Transport{}
	if err := http2.ConfigureTransport(transport); err != nil {
		return http.DefaultTransport
	}
	return transport
}

// StremioConfig describes one configured Stremio-protocol addon instance,
// built from a Preset plus a user's per-preset options (spec.md §4.8).
type StremioConfig struct {
	Name       string
	ID         string
	BaseURL    string // e.g. "https://torrentio.strem.fun"
	Options    string // URL-path options segment, already encoded; may be empty
	Caps       []Capability
	Timeout    time.Duration
	HTTPClient *http.Client
}

// StremioClient is a generic Stremio-protocol addon client: it builds
// "<base>[/<options>]/stream/<type>/<id>.json" requests and normalizes the
// response into UnprocessedResult, the same shape the teacher's Torrentio
// scraper builds internally before handing results to its aggregator.
type StremioClient struct {
	cfg StremioConfig
}

func NewStremioClient(cfg StremioConfig) *StremioClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout, Transport: defaultTransport()}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &StremioClient{cfg: cfg}
}

func (c *StremioClient) Name() string               { return c.cfg.Name }
func (c *StremioClient) ID() string                 { return c.cfg.ID }
func (c *StremioClient) Capabilities() []Capability { return c.cfg.Caps }

func (c *StremioClient) streamURL(mediaType, id string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.Options != "" {
		base += "/" + strings.Trim(c.cfg.Options, "/")
	}
	return fmt.Sprintf("%s/stream/%s/%s.json", base, url.PathEscape(mediaType), url.PathEscape(id))
}

// GetStreams never returns an error: upstream failures are captured as
// models.AddonError entries alongside whatever streams did come back
// (spec.md §4.8/§4.9 — one misbehaving addon must not abort the fan-out).
func (c *StremioClient) GetStreams(ctx context.Context, mediaType, id string) StreamsResult {
	if !hasCapability(c.cfg.Caps, CapabilityStreams) {
		return StreamsResult{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL(mediaType, id), nil)
	if err != nil {
		return StreamsResult{Errors: []models.AddonError{c.errorOf("request", err)}}
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return StreamsResult{Errors: []models.AddonError{c.errorOf("timeout", err)}}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StreamsResult{Errors: []models.AddonError{{
			AddonName:   c.cfg.Name,
			Kind:        "upstream_status",
			Description: fmt.Sprintf("%d from %s", resp.StatusCode, c.cfg.BaseURL),
		}}}
	}

	var payload stremioStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return StreamsResult{Errors: []models.AddonError{c.errorOf("decode", err)}}
	}

	results := make([]models.UnprocessedResult, 0, len(payload.Streams))
	for _, s := range payload.Streams {
		if r, ok := c.normalize(s); ok {
			results = append(results, r)
		}
	}
	return StreamsResult{Streams: results}
}

func (c *StremioClient) errorOf(kind string, err error) models.AddonError {
	return models.AddonError{AddonName: c.cfg.Name, Kind: kind, Description: err.Error()}
}

// stremioStreamResponse mirrors the wire shape Stremio addons return,
// grounded on the teacher's torrentioResponse: size/seeders/tracker travel
// as interface{} because implementations disagree on string vs number.
type stremioStreamResponse struct {
	Streams []stremioStream `json:"streams"`
}

type stremioStream struct {
	Name          string                 `json:"name"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	InfoHash      string                 `json:"infoHash"`
	FileIdx       *int                   `json:"fileIdx"`
	URL           string                 `json:"url"`
	Size          interface{}            `json:"size"`
	Seeders       interface{}            `json:"seeders"`
	Sources       []string               `json:"sources"`
	BehaviorHints map[string]interface{} `json:"behaviorHints"`
}

var (
	reSize    = regexp.MustCompile(`💾\s*([\d.]+)\s*(GB|MB)`)
	reSeeders = regexp.MustCompile(`👤\s*(\d+)`)
)

// normalize folds one stremio stream entry into an UnprocessedResult,
// extracting size/seeder hints from the emoji-tagged title text the way
// the teacher's Torrentio scraper does when the JSON fields are absent.
func (c *StremioClient) normalize(s stremioStream) (models.UnprocessedResult, bool) {
	title := s.Title
	if title == "" {
		title = s.Description
	}
	if title == "" {
		title = s.Name
	}

	kind := models.KindTorrent
	if s.URL != "" && s.InfoHash == "" {
		kind = models.KindHTTP
	}

	res := models.UnprocessedResult{
		Kind:        kind,
		Hash:        strings.ToLower(s.InfoHash),
		Title:       title,
		Sources:     s.Sources,
		DownloadURL: s.URL,
		Indexer:     c.cfg.Name,
		AddonName:   c.cfg.Name,
		AddonID:     c.cfg.ID,
	}

	if s.FileIdx != nil {
		res.Sources = append(res.Sources, fmt.Sprintf("fileIdx:%d", *s.FileIdx))
	}
	if sz := sizeOf(s.Size); sz > 0 {
		res.SizeBytes = sz
	} else if m := reSize.FindStringSubmatch(title); m != nil {
		res.SizeBytes = parseHumanSize(m[1], m[2])
	}
	if sd := intOf(s.Seeders); sd != nil {
		res.Seeders = sd
	} else if m := reSeeders.FindStringSubmatch(title); m != nil {
		n, _ := strconv.Atoi(m[1])
		res.Seeders = &n
	}

	if res.Hash == "" && res.DownloadURL == "" {
		return models.UnprocessedResult{}, false
	}
	return res, true
}

func sizeOf(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return int64(f)
	default:
		return 0
	}
}

func intOf(v interface{}) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return nil
		}
		return &i
	default:
		return nil
	}
}

func parseHumanSize(amount, unit string) int64 {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "GB":
		return int64(f * 1024 * 1024 * 1024)
	case "MB":
		return int64(f * 1024 * 1024)
	default:
		return int64(f)
	}
}
