package models

// MediaKind is the media category a ParsedId refers to.
type MediaKind string

const (
	MediaMovie  MediaKind = "movie"
	MediaSeries MediaKind = "series"
	MediaAnime  MediaKind = "anime"
)

// IdNamespace enumerates the external identifier systems IdParser recognizes.
type IdNamespace string

const (
	NamespaceIMDB    IdNamespace = "imdb"
	NamespaceTMDB    IdNamespace = "tmdb"
	NamespaceTVDB    IdNamespace = "tvdb"
	NamespaceKitsu   IdNamespace = "kitsu"
	NamespaceAnilist IdNamespace = "anilist"
	NamespaceMAL     IdNamespace = "mal"
)

// ParsedId is an external identifier decomposed into its parts. Immutable
// after parse: callers must treat a ParsedId as a value, never mutate it
// in place.
type ParsedId struct {
	Namespace IdNamespace
	Value     string
	MediaKind MediaKind
	Season    *int
	Episode   *int
}

// IsSeries reports whether this id refers to series or anime media,
// whether or not Season/Episode are set.
func (p ParsedId) IsSeries() bool {
	return p.MediaKind == MediaSeries || p.MediaKind == MediaAnime
}
