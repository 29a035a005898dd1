package processor

import (
	"sort"

	"aiostreams/models"
)

// SortField is one of the sortable attributes spec.md §4.10 step (d)
// names; a Config.Sort list is an ordered priority of these, each with
// its own direction, and ties cascade to the next rule.
type SortField string

const (
	SortByCached          SortField = "cached"
	SortByLibrary         SortField = "library"
	SortByService         SortField = "service"
	SortByResolution      SortField = "resolution"
	SortBySize            SortField = "size"
	SortByQuality         SortField = "quality"
	SortBySeeders         SortField = "seeders"
	SortByLanguage        SortField = "language"
	SortByVisualTag       SortField = "visualTag"
	SortByAudioChannel    SortField = "audioChannel"
	SortByRegexRank       SortField = "regex-rank"
	SortByStreamExpr      SortField = "streamExpression-rank"
)

// SortRule is one entry in the user-defined sort-key ordering.
type SortRule struct {
	Field      SortField `json:"field"`
	Descending bool      `json:"descending,omitempty"`
}

var resolutionRank = map[string]int{
	"2160p": 4, "4k": 4, "1080p": 3, "720p": 2, "576p": 1, "480p": 1, "360p": 0,
}

// sortStreams implements step (d): a stable sort over the user's ordered
// sort-key list, each key resolving ties via the next one.
func sortStreams(streams []models.ParsedStream, rules []SortRule) []models.ParsedStream {
	if len(rules) == 0 {
		return streams
	}
	sort.SliceStable(streams, func(i, j int) bool {
		a, b := streams[i], streams[j]
		for _, rule := range rules {
			cmp := compareField(a, b, rule.Field)
			if cmp == 0 {
				continue
			}
			if rule.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return streams
}

// compareField returns <0 if a sorts before b on field, >0 if after, 0 on
// a tie (so the caller falls through to the next rule).
func compareField(a, b models.ParsedStream, field SortField) int {
	switch field {
	case SortByCached:
		return compareBool(cachedOf(a), cachedOf(b))
	case SortByLibrary:
		return compareBool(a.Library, b.Library)
	case SortByService:
		return compareString(serviceOf(a), serviceOf(b))
	case SortByResolution:
		return compareInt(resolutionRank[a.ParsedFile.Resolution], resolutionRank[b.ParsedFile.Resolution])
	case SortBySize:
		return compareInt64(a.Size, b.Size)
	case SortByQuality:
		return compareString(a.ParsedFile.Quality, b.ParsedFile.Quality)
	case SortBySeeders:
		return compareIntPtr(a.Seeders, b.Seeders)
	case SortByLanguage:
		return compareInt(len(a.Languages), len(b.Languages))
	case SortByVisualTag:
		return compareInt(len(a.ParsedFile.VisualTags), len(b.ParsedFile.VisualTags))
	case SortByAudioChannel:
		return compareInt(len(a.ParsedFile.AudioChannels), len(b.ParsedFile.AudioChannels))
	case SortByRegexRank, SortByStreamExpr:
		// No regex or stream-expression rank is computed here: these keys
		// always compare as a tie and never reorder streams.
		return 0
	default:
		return 0
	}
}

func cachedOf(s models.ParsedStream) bool {
	return s.Service != nil && s.Service.Cached
}

func serviceOf(s models.ParsedStream) string {
	if s.Service == nil {
		return ""
	}
	return s.Service.ID
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func compareInt(a, b int) int {
	return a - b
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareIntPtr(a, b *int) int {
	av, bv := 0, 0
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return compareInt(av, bv)
}
