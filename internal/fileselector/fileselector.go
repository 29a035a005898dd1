// Package fileselector implements FileSelector (C7): given a debrid
// download with multiple files and a request's search metadata, pick
// exactly one file deterministically (spec.md §4.7).
package fileselector

import (
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"aiostreams/internal/matching"
	"aiostreams/internal/titleparser"
	"aiostreams/models"
)

// videoExtensions mirrors the teacher's media-extension allowlist
// (internal/mediaresolve/selector.go's releaseNameExtensions), used for the
// filename-only tie-break when no downloaded bytes are available to sniff.
var videoExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".m4v": {}, ".avi": {}, ".mov": {},
	".mpg": {}, ".mpeg": {}, ".ts": {}, ".m2ts": {}, ".mts": {}, ".webm": {},
}

// ErrNoMatchingFile is returned when no candidate survives the match and
// tie-break pass.
var ErrNoMatchingFile = errors.New("fileselector: no matching file")

// Candidate is one file under consideration, alongside the folder it lives
// in (if any) — both get parsed and merged the way the container's own
// name folds into a file's parse, per spec.md §3.
type Candidate struct {
	Index      int
	Filename   string
	FolderName string
	Size       int64
}

// Request narrows selection to one title/season/episode.
type Request struct {
	Metadata       models.SearchMetadata
	ParsedID       models.ParsedId
	ChosenFilename string
	ChosenIndex    *int
}

var parser = titleparser.New()

// Select runs the §4.7 algorithm: parse, eliminate by series constraint,
// then tie-break on (video mime, size, path depth, lexical order). When the
// request pins a chosenFilename/chosenIndex, that candidate wins as long as
// it still passes the series/title constraints; otherwise the algorithm
// falls back to scoring all candidates.
func Select(candidates []Candidate, req Request) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoMatchingFile
	}

	eligible := make([]Candidate, 0, len(candidates))
	parsed := make(map[int]models.ParsedFile, len(candidates))
	for _, c := range candidates {
		filePart := parser.Parse(c.Filename)
		merged := filePart
		if c.FolderName != "" {
			folderPart := parser.Parse(c.FolderName)
			merged = models.MergeFileFolder(filePart, folderPart)
		}
		parsed[c.Index] = merged

		titles := req.Metadata.AllTitles()
		if len(titles) > 0 && !matching.MatchesTitle(merged.Title, titles, 0) && merged.Title != "" {
			continue
		}
		if req.ParsedID.IsSeries() {
			seriesReq := matching.SeriesRequest{
				Season:                  req.ParsedID.Season,
				Episode:                 req.ParsedID.Episode,
				AbsoluteEpisode:         req.Metadata.AbsoluteEpisode,
				RelativeAbsoluteEpisode: req.Metadata.RelativeAbsoluteEpisode,
			}
			if !matching.MatchesSeries(merged, seriesReq) {
				continue
			}
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return Candidate{}, ErrNoMatchingFile
	}

	if req.ChosenFilename != "" {
		for _, c := range eligible {
			if c.Filename == req.ChosenFilename {
				return c, nil
			}
		}
	}
	if req.ChosenIndex != nil {
		for _, c := range eligible {
			if c.Index == *req.ChosenIndex {
				return c, nil
			}
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if av, bv := isVideo(a.Filename), isVideo(b.Filename); av != bv {
			return av
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		if da, db := pathDepth(a.Filename), pathDepth(b.Filename); da != db {
			return da < db
		}
		return a.Filename < b.Filename
	})

	return eligible[0], nil
}

func isVideo(filename string) bool {
	_, ok := videoExtensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// SniffIsVideo confirms a candidate by content rather than extension, for
// callers (playback resolution, library Meta probing) that have actual
// downloaded bytes to inspect rather than just a filename.
func SniffIsVideo(r io.Reader) (bool, error) {
	mime, err := mimetype.DetectReader(r)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(mime.String(), "video/"), nil
}

func pathDepth(filename string) int {
	return strings.Count(strings.ReplaceAll(filename, "\\", "/"), "/")
}
