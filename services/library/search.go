package library

import (
	"strings"

	"aiostreams/internal/matching"
	"aiostreams/internal/titleparser"
	"aiostreams/models"
)

var searchParser = titleparser.New()

// Search finds items in snapshot that match metadata/parsedID, per spec.md
// §4.6: only items with status cached/downloaded and a non-empty name are
// considered; the result carries confirmed=true, library=true, and a hash
// taken from the item itself.
func Search(snapshot Snapshot, metadata models.SearchMetadata, parsedID models.ParsedId) []models.UnprocessedResult {
	var out []models.UnprocessedResult

	for _, item := range snapshot.Items {
		if item.Status != models.StatusCached && item.Status != models.StatusDownloaded {
			continue
		}
		if strings.TrimSpace(item.Name) == "" {
			continue
		}

		parsed := searchParser.Parse(item.Name)
		if !matching.MatchesTitle(parsed.Title, metadata.AllTitles(), 0) {
			continue
		}
		if parsedID.IsSeries() {
			seriesReq := matching.SeriesRequest{
				Season:                  parsedID.Season,
				Episode:                 parsedID.Episode,
				AbsoluteEpisode:         metadata.AbsoluteEpisode,
				RelativeAbsoluteEpisode: metadata.RelativeAbsoluteEpisode,
			}
			if !matching.MatchesSeries(parsed, seriesReq) {
				continue
			}
		}

		out = append(out, models.UnprocessedResult{
			Kind:      models.KindDebrid,
			Hash:      item.Hash,
			Title:     item.Name,
			SizeBytes: item.Size,
			Confirmed: true,
			IsLibrary: true,
		})
	}
	return out
}
