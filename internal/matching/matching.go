// Package matching implements the candidate-acceptance rules of spec.md
// §4.3: title-similarity threshold plus, for series, season/episode
// constraint checks. It is used by both the LibrarySubsystem search
// (§4.6) and the FileSelector (§4.7), which apply the identical rule to
// different candidate shapes.
package matching

import (
	"aiostreams/internal/similarity"
	"aiostreams/models"
)

// SeriesRequest narrows a match to one episode (or a whole season, when
// Episode/AbsoluteEpisode/RelativeAbsoluteEpisode are all nil).
type SeriesRequest struct {
	Season                  *int
	Episode                 *int
	AbsoluteEpisode         *int
	RelativeAbsoluteEpisode *int
}

// MatchesTitle reports whether candidate reaches the similarity threshold
// against any of titles (§3 invariant: "a candidate whose cleaned parsed
// title does not reach similarity >= 0.85 ... is discarded").
func MatchesTitle(candidateTitle string, titles []string, threshold float64) bool {
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	return similarity.Matches(candidateTitle, titles, threshold)
}

// MatchesSeries applies the §4.3 series constraints to a parsed candidate:
//   - if the candidate declares seasons, the requested season must be
//     among them;
//   - if it declares episodes, the requested episode OR absolute episode
//     OR relative-absolute episode must be present;
//   - a candidate with no episode info but a season-pack indicator is
//     valid for any episode within a declared (or folder) season.
func MatchesSeries(candidate models.ParsedFile, req SeriesRequest) bool {
	if req.Season != nil && len(candidate.Seasons) > 0 && !containsInt(candidate.Seasons, *req.Season) {
		return false
	}

	if len(candidate.Episodes) > 0 {
		return matchesAnyEpisode(candidate.Episodes, req)
	}

	// No declared episodes: a season-pack file/folder is valid for any
	// episode within the season it declares.
	if candidate.SeasonPack {
		seasons := candidate.Seasons
		if len(seasons) == 0 {
			seasons = candidate.FolderSeasons
		}
		if req.Season == nil || len(seasons) == 0 {
			return true
		}
		return containsInt(seasons, *req.Season)
	}

	// No episode info at all and not flagged as a pack: season match (or
	// absence of a season requirement) is enough — this covers folder-only
	// season information without a declared pack flag.
	return true
}

func matchesAnyEpisode(declared []int, req SeriesRequest) bool {
	if req.Episode != nil && containsInt(declared, *req.Episode) {
		return true
	}
	if req.AbsoluteEpisode != nil && containsInt(declared, *req.AbsoluteEpisode) {
		return true
	}
	if req.RelativeAbsoluteEpisode != nil && containsInt(declared, *req.RelativeAbsoluteEpisode) {
		return true
	}
	return req.Episode == nil && req.AbsoluteEpisode == nil && req.RelativeAbsoluteEpisode == nil
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
