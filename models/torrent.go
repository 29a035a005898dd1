package models

// StreamKind distinguishes the underlying transport of an unprocessed
// candidate and, later, a ParsedStream.
type StreamKind string

const (
	KindTorrent StreamKind = "torrent"
	KindUsenet  StreamKind = "usenet"
	KindDebrid  StreamKind = "debrid"
	KindP2P     StreamKind = "p2p"
	KindHTTP    StreamKind = "http"
	KindLive    StreamKind = "live"
	KindYoutube StreamKind = "youtube"
)

// UnprocessedResult is a raw candidate as returned by an AddonClient or the
// LibrarySubsystem, before TitleParser enrichment or availability checks.
// It covers both torrents and NZBs (UnprocessedTorrent / NZB in spec.md §3);
// Kind selects which fields are meaningful.
type UnprocessedResult struct {
	Kind        StreamKind
	Hash        string // 40-char lowercase hex info-hash for torrents; service id or content digest for usenet
	Sources     []string
	Title       string
	SizeBytes   int64
	Indexer     string
	Seeders     *int
	AgeHours    *float64
	DownloadURL string
	NZBURL      string
	Confirmed   bool
	IsLibrary   bool

	// Carried through from the addon that produced this candidate.
	AddonName string
	AddonID   string
}
