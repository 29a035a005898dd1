package library

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"aiostreams/internal/idparser"
	"aiostreams/internal/titleparser"
	"aiostreams/models"
)

// Video is one playable file exposed from an owned item's detail view.
type Video struct {
	ID       string // "<LibraryPrefix>.<serviceId>.<kind>.<itemId>:<fileIndex>"
	Filename string
	Size     int64
}

// MetaView is the detail view for one owned item (spec.md §4.6 "Meta").
type MetaView struct {
	Description    string
	Videos         []Video
	DefaultVideoID string // set only when exactly one playable file exists
}

var metaParser = titleparser.New()

var playableExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".m4v": {}, ".avi": {}, ".mov": {},
	".mpg": {}, ".mpeg": {}, ".ts": {}, ".m2ts": {}, ".mts": {}, ".webm": {},
}

// Meta builds a MetaView for item, addressed under serviceID/kind/itemID
// for video-id stability.
func Meta(item models.DebridDownload, serviceID, kind, itemID string) MetaView {
	parsed := metaParser.Parse(item.Name)

	videos := make([]Video, 0, len(item.Files))
	for _, f := range item.Files {
		if _, ok := playableExtensions[strings.ToLower(path.Ext(f.Name))]; !ok {
			continue
		}
		videos = append(videos, Video{
			ID:       idparser.EncodeLibraryId(idparser.LibraryId{ServiceID: serviceID, Kind: kind, ItemID: itemID, FileID: strconv.Itoa(f.Index)}),
			Filename: f.Name,
			Size:     f.Size,
		})
	}

	view := MetaView{Description: describe(parsed, item), Videos: videos}
	if len(videos) == 1 {
		view.DefaultVideoID = videos[0].ID
	}
	return view
}

func describe(parsed models.ParsedFile, item models.DebridDownload) string {
	var b strings.Builder
	title := parsed.Title
	if title == "" {
		title = item.Name
	}
	b.WriteString(title)
	if parsed.Year > 0 {
		fmt.Fprintf(&b, " (%d)", parsed.Year)
	}
	if len(parsed.Seasons) > 0 {
		fmt.Fprintf(&b, " S%s", formatRange(parsed.Seasons))
		if len(parsed.Episodes) > 0 {
			fmt.Fprintf(&b, "E%s", formatRange(parsed.Episodes))
		}
	}
	if parsed.Resolution != "" {
		fmt.Fprintf(&b, " · %s", parsed.Resolution)
	}
	fmt.Fprintf(&b, " · %s · %d file(s)", humanSize(item.Size), len(item.Files))
	if item.AddedAt != nil {
		fmt.Fprintf(&b, " · added %s", item.AddedAt.Format("2006-01-02"))
	}
	return b.String()
}

func formatRange(nums []int) string {
	if len(nums) == 1 {
		return fmt.Sprintf("%02d", nums[0])
	}
	lo, hi := nums[0], nums[0]
	for _, n := range nums {
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	return fmt.Sprintf("%02d-%02d", lo, hi)
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
