package library

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"aiostreams/internal/similarity"
	"aiostreams/models"
)

// SortKey is a Catalog sort axis.
type SortKey string

const (
	SortAdded SortKey = "added"
	SortTitle SortKey = "title"
)

// searchFloor is the minimum fuzzy score (out of 100) a query match needs
// to appear in the catalog at all (spec.md §4.6).
const searchFloor = 65

// CatalogOptions controls one Catalog call.
type CatalogOptions struct {
	Sort        SortKey
	Descending  bool
	Query       string
	Page        int
	PageSize    int
	Language    string // BCP-47 tag for locale-aware title sort; defaults to English
}

// CatalogEntry pairs one owned item with its display title and, when a
// search query was supplied, its match score.
type CatalogEntry struct {
	Item  models.DebridDownload
	Title string
	Score int
}

var defaultCollator = collate.New(language.English)

// Catalog lists a snapshot's items, either sorted (no query) or scored and
// filtered against a search query (spec.md §4.6 catalog algorithm).
func Catalog(snapshot Snapshot, opts CatalogOptions) []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		entries = append(entries, CatalogEntry{Item: item, Title: item.Name})
	}

	if q := strings.TrimSpace(opts.Query); q != "" {
		scored := make([]CatalogEntry, 0, len(entries))
		for _, e := range entries {
			e.Score = scoreMatch(e.Title, q)
			if e.Score >= searchFloor {
				scored = append(scored, e)
			}
		}
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
		return paginate(scored, opts)
	}

	col := defaultCollator
	if opts.Language != "" {
		if tag, err := language.Parse(opts.Language); err == nil {
			col = collate.New(tag)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		var less bool
		switch opts.Sort {
		case SortTitle:
			less = col.CompareString(entries[i].Title, entries[j].Title) < 0
		default: // SortAdded
			ai, aj := addedTime(entries[i].Item), addedTime(entries[j].Item)
			less = ai.Before(aj)
		}
		if opts.Descending {
			return !less
		}
		return less
	})
	return paginate(entries, opts)
}

func addedTime(d models.DebridDownload) (t time.Time) {
	if d.AddedAt != nil {
		return *d.AddedAt
	}
	return t
}

// scoreMatch implements the §4.6 scoring scheme: exact normalized match
// scores 110, a word-boundary prefix match scores 100 (when it starts the
// string) or 95 (when it starts a later word), a substring match scores 80,
// and anything else falls back to a fuzzy token-set-ratio score scaled to
// 0-100.
func scoreMatch(title, query string) int {
	normTitle := similarity.Normalize(title)
	normQuery := similarity.Normalize(query)
	if normTitle == "" || normQuery == "" {
		return 0
	}
	if normTitle == normQuery {
		return 110
	}
	if strings.HasPrefix(normTitle, normQuery) {
		return 100
	}
	for _, word := range strings.Fields(normTitle) {
		if strings.HasPrefix(word, normQuery) {
			return 95
		}
	}
	if strings.Contains(normTitle, normQuery) {
		return 80
	}
	return int(similarity.BestMatch(title, []string{query}) * 100)
}

func paginate(entries []CatalogEntry, opts CatalogOptions) []CatalogEntry {
	size := opts.PageSize
	if size <= 0 {
		size = 100
	}
	page := opts.Page
	if page < 0 {
		page = 0
	}
	start := page * size
	if start >= len(entries) {
		return nil
	}
	end := start + size
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}
