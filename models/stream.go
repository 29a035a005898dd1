package models

// StreamService is the debrid-service portion of a ParsedStream.
type StreamService struct {
	ID        string
	Cached    bool
	ShortName string
}

// StreamAddon identifies the addon a ParsedStream came from.
type StreamAddon struct {
	Name string
	ID   string
}

// StreamError carries an error surfaced as a stream entry rather than a
// fatal failure (spec.md §7 "errors become visible info-streams").
type StreamError struct {
	Title       string
	Description string
}

// ParsedStream is the final, post-Processor representation of one
// candidate stream.
type ParsedStream struct {
	Addon      StreamAddon
	Type       StreamKind
	Service    *StreamService
	URL        string
	InfoHash   string
	FileIndex  *int
	Size       int64
	FolderSize int64
	Filename   string
	FolderName string
	ParsedFile ParsedFile
	Seeders    *int
	AgeHours   *float64
	Languages  []string
	Error      *StreamError
	Message    string
	Library    bool
	Proxied    bool
	Private    bool
	BingeGroup string
	Duration   *float64
	Bitrate    *int64
}

// DedupeKey identifies the logical stream a candidate belongs to, per
// spec.md §3: {service.id, hash, fileIndex|default} uniquely identifies one
// logical stream.
func (s ParsedStream) DedupeKey() string {
	serviceID := ""
	if s.Service != nil {
		serviceID = s.Service.ID
	}
	fileIdx := "default"
	if s.FileIndex != nil {
		fileIdx = itoa(*s.FileIndex)
	}
	return serviceID + "|" + s.InfoHash + "|" + fileIdx
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Describe renders the minimal human-readable input contract a display
// formatter would consume. Rendering of display strings is out of scope
// (spec.md §1); this only documents/validates the field contract.
func (s ParsedStream) Describe() string {
	name := s.ParsedFile.Title
	if name == "" {
		name = s.Filename
	}
	return name
}
