// Package metadata derives the SearchMetadata the Aggregator needs once
// per request (spec.md §4.9 step 1, §3): primary/alternate titles, year,
// genres, and language, looked up from TMDB and cached so N addon calls
// for the same ParsedId only trigger one upstream fetch.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"aiostreams/internal/cache"
	"aiostreams/models"
)

const (
	tmdbBaseURL  = "https://api.themoviedb.org/3"
	cacheNS      = "metadata"
	lookupTTL    = 24 * time.Hour
)

// Service resolves models.SearchMetadata for a models.ParsedId, caching
// the result per id so repeated lookups within the configured TTL don't
// re-hit TMDB (spec.md §4.9: "single fetch, cached per ParsedId").
type Service struct {
	apiKey   string
	language string
	client   *http.Client
	cache    cache.Typed[models.SearchMetadata]
}

func NewService(apiKey, language string, store *cache.Store) *Service {
	if language == "" {
		language = "en-US"
	}
	return &Service{
		apiKey:   apiKey,
		language: language,
		client:   &http.Client{Timeout: 15 * time.Second},
		cache:    cache.NewTyped[models.SearchMetadata](store, cacheNS),
	}
}

// Lookup implements aggregator.MetadataLookup.
func (s *Service) Lookup(ctx context.Context, id models.ParsedId) (models.SearchMetadata, error) {
	key := string(id.Namespace) + ":" + id.Value
	if cached, ok := s.cache.Get(ctx, key); ok {
		return withEpisode(cached, id), nil
	}

	meta, err := s.fetch(ctx, id)
	if err != nil {
		return models.SearchMetadata{}, err
	}
	s.cache.Set(ctx, key, meta, lookupTTL, false)
	return withEpisode(meta, id), nil
}

// withEpisode layers the request's season/episode onto the cached,
// id-only metadata (season/episode vary per request; title/year/genres
// do not, so only the latter are worth caching).
func withEpisode(meta models.SearchMetadata, id models.ParsedId) models.SearchMetadata {
	meta.Season = id.Season
	meta.Episode = id.Episode
	meta.IsAnime = meta.IsAnime || id.MediaKind == models.MediaAnime
	return meta
}

func (s *Service) fetch(ctx context.Context, id models.ParsedId) (models.SearchMetadata, error) {
	if s.apiKey == "" {
		return models.SearchMetadata{}, fmt.Errorf("metadata: no TMDB API key configured")
	}

	endpoint, findBy, err := s.resolveEndpoint(id)
	if err != nil {
		return models.SearchMetadata{}, err
	}

	var result tmdbDetails
	if findBy != "" {
		found, err := s.find(ctx, findBy, id.Value)
		if err != nil {
			return models.SearchMetadata{}, err
		}
		result = found
	} else {
		if err := s.get(ctx, endpoint, &result); err != nil {
			return models.SearchMetadata{}, err
		}
	}

	return result.toSearchMetadata(id), nil
}

// resolveEndpoint picks the TMDB detail endpoint for a namespace/mediaKind
// pair that's addressed directly by tmdb id; other namespaces resolve via
// the /find endpoint instead (findBy non-empty).
func (s *Service) resolveEndpoint(id models.ParsedId) (endpoint, findBy string, err error) {
	kind := "movie"
	if id.IsSeries() {
		kind = "tv"
	}
	switch id.Namespace {
	case models.NamespaceTMDB:
		return fmt.Sprintf("/%s/%s", kind, id.Value), "", nil
	case models.NamespaceIMDB:
		return "", "imdb_id", nil
	case models.NamespaceTVDB:
		return "", "tvdb_id", nil
	default:
		return "", "", fmt.Errorf("metadata: namespace %q has no TMDB mapping", id.Namespace)
	}
}

func (s *Service) find(ctx context.Context, externalSource, externalID string) (tmdbDetails, error) {
	var resp tmdbFindResponse
	path := fmt.Sprintf("/find/%s?external_source=%s", url.PathEscape(externalID), externalSource)
	if err := s.get(ctx, path, &resp); err != nil {
		return tmdbDetails{}, err
	}
	if len(resp.MovieResults) > 0 {
		return resp.MovieResults[0], nil
	}
	if len(resp.TVResults) > 0 {
		return resp.TVResults[0], nil
	}
	return tmdbDetails{}, fmt.Errorf("metadata: no TMDB match for %s", externalID)
}

func (s *Service) get(ctx context.Context, path string, out any) error {
	sep := "?"
	if contains(path, "?") {
		sep = "&"
	}
	u := tmdbBaseURL + path + sep + "language=" + url.QueryEscape(s.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("metadata: tmdb request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata: tmdb returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// tmdbDetails is the subset of TMDB's movie/tv detail response this
// package projects into models.SearchMetadata.
type tmdbDetails struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	Name             string   `json:"name"`
	OriginalTitle    string   `json:"original_title"`
	OriginalName     string   `json:"original_name"`
	ReleaseDate      string   `json:"release_date"`
	FirstAirDate     string   `json:"first_air_date"`
	OriginalLanguage string   `json:"original_language"`
	Runtime          int      `json:"runtime"`
	Genres           []tmdbGenre `json:"genres"`
	GenreIDs         []int    `json:"genre_ids"`
}

type tmdbGenre struct {
	Name string `json:"name"`
}

type tmdbFindResponse struct {
	MovieResults []tmdbDetails `json:"movie_results"`
	TVResults    []tmdbDetails `json:"tv_results"`
}

func (d tmdbDetails) toSearchMetadata(id models.ParsedId) models.SearchMetadata {
	title := d.Title
	if title == "" {
		title = d.Name
	}
	titles := []string{title}
	if d.OriginalTitle != "" && d.OriginalTitle != title {
		titles = append(titles, d.OriginalTitle)
	}
	if d.OriginalName != "" && d.OriginalName != title {
		titles = append(titles, d.OriginalName)
	}

	year := 0
	date := d.ReleaseDate
	if date == "" {
		date = d.FirstAirDate
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			year = y
		}
	}

	genres := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		genres = append(genres, g.Name)
	}

	meta := models.SearchMetadata{
		PrimaryTitle:     title,
		Titles:           titles,
		Year:             year,
		Genres:           genres,
		OriginalLanguage: d.OriginalLanguage,
		TMDBId:           strconv.Itoa(d.ID),
	}
	if id.Namespace == models.NamespaceIMDB {
		meta.IMDBId = id.Value
	}
	if d.Runtime > 0 {
		meta.RuntimeMinutes = &d.Runtime
	}
	return meta
}
