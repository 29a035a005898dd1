package models

// PlaybackMetadata narrows a resolve request to one episode/movie instance.
type PlaybackMetadata struct {
	Season          *int
	Episode         *int
	AbsoluteEpisode *int
}

// PlaybackInfo is the input to PlaybackResolver.Resolve (spec.md §4.11).
type PlaybackInfo struct {
	Type           StreamKind
	Hash           string
	NZB            string
	DownloadURL    string
	Sources        []string
	Metadata       *PlaybackMetadata
	FileIndex      *int
	Filename       string
	Index          *int
	ServiceItemID  string
	Private        bool
}

// AddonError is a per-addon failure captured by the Aggregator; a failing
// addon never aborts sibling work (spec.md §4.9, §7).
type AddonError struct {
	AddonName   string
	Kind        string
	Description string
}

func (e AddonError) Error() string {
	return e.AddonName + ": " + e.Description
}
