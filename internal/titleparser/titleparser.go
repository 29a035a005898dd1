// Package titleparser implements TitleParser (C3): turning a filename or
// release-style string into a models.ParsedFile. It is total (never
// errors — unrecognized fields are simply left unset) and deterministic
// (same input always yields the same output), as spec.md §4.3 requires.
//
// The teacher's own title parser (utils/parsett) shells out to a Python
// PTT script, which cannot satisfy "total, never throws" inside this
// process. github.com/moistari/rls is a pure-Go release-name parser that
// covers the same ground (resolution, source, codec, audio, HDR, edition,
// group, container, language) natively; season/episode arrays and
// season-pack detection — which rls's single Series/Episode ints don't
// model — are extracted with our own regexes, grounded on the teacher's
// internal/mediaresolve/selector.go episode-code patterns.
package titleparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"

	"aiostreams/models"
)

var (
	seasonRangePattern  = regexp.MustCompile(`(?i)\bs(\d{1,2})(?:\s*-\s*|\s+to\s+)s?(\d{1,2})\b`)
	seasonListPattern   = regexp.MustCompile(`(?i)\bs(\d{2})\b`)
	episodeRangePattern = regexp.MustCompile(`(?i)\be(\d{1,3})(?:\s*-\s*|\s+to\s+)e?(\d{1,3})\b`)
	episodeListPattern  = regexp.MustCompile(`(?i)\be(\d{2,3})\b`)
	completePackPattern = regexp.MustCompile(`(?i)\b(complete|season\s*pack|full\s*season)\b`)
	repackPattern       = regexp.MustCompile(`(?i)\b(repack|rerip)\b`)
	remasteredPattern   = regexp.MustCompile(`(?i)\bremaster(?:ed)?\b`)
	uncensoredPattern   = regexp.MustCompile(`(?i)\buncensored\b`)
	unratedPattern      = regexp.MustCompile(`(?i)\bunrated\b`)
	upscaledPattern     = regexp.MustCompile(`(?i)\b(ai[- ]?upscal(?:ed)?|upscaled)\b`)
	networkPattern      = regexp.MustCompile(`(?i)\b(NF|AMZN|DSNP|HULU|HBO|ATVP|MAX|PCOK)\b`)
	extensionPattern    = regexp.MustCompile(`\.([A-Za-z0-9]{2,4})$`)
)

// Parser parses release titles into models.ParsedFile. Stateless and safe
// for concurrent use; kept as a struct (rather than a bare function) so a
// future cache or language preference can be attached without breaking
// callers, mirroring how the rest of this codebase wraps near-stateless
// logic in a small struct.
type Parser struct{}

func New() *Parser { return &Parser{} }

// Parse is total and deterministic: unset/unmatched fields are left at
// their zero value, never an error.
func (p *Parser) Parse(input string) models.ParsedFile {
	release := rls.ParseString(input)

	out := models.ParsedFile{
		Title:         release.Title,
		Year:          release.Year,
		Resolution:    strings.ToLower(release.Resolution),
		Quality:       strings.ToLower(release.Source),
		Encode:        strings.ToLower(strings.Join(release.Codec, " ")),
		ReleaseGroup:  release.Group,
		Edition:       strings.Join(release.Edition, ", "),
		Network:       firstMatch(networkPattern, input),
		Container:     strings.ToLower(release.Container),
		Extension:     strings.ToLower(firstMatch(extensionPattern, input)),
		VisualTags:    append([]string{}, release.HDR...),
		AudioTags:     append([]string{}, release.Other...),
		AudioChannels: splitChannels(release.Channels),
		Languages:     append([]string{}, release.Language...),
		Repack:        repackPattern.MatchString(input),
		Remastered:    remasteredPattern.MatchString(input),
		Uncensored:    uncensoredPattern.MatchString(input),
		Unrated:       unratedPattern.MatchString(input),
		Upscaled:      upscaledPattern.MatchString(input),
	}

	seasons := parseSeasons(input, release.Series)
	episodes := parseEpisodes(input, release.Episode)
	out.Seasons = seasons
	out.Episodes = episodes
	out.SeasonPack = len(seasons) > 0 && (len(episodes) == 0 || completePackPattern.MatchString(input))

	return out
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func splitChannels(channels string) []string {
	channels = strings.TrimSpace(channels)
	if channels == "" {
		return nil
	}
	return []string{strings.ToLower(channels)}
}

func parseSeasons(input string, rlsSeason int) []int {
	if m := seasonRangePattern.FindStringSubmatch(input); len(m) == 3 {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo == nil && errHi == nil && hi >= lo {
			out := make([]int, 0, hi-lo+1)
			for s := lo; s <= hi; s++ {
				out = append(out, s)
			}
			return out
		}
	}

	seen := map[int]struct{}{}
	var out []int
	for _, m := range seasonListPattern.FindAllStringSubmatch(input, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	if rlsSeason > 0 {
		return []int{rlsSeason}
	}
	return nil
}

func parseEpisodes(input string, rlsEpisode int) []int {
	if m := episodeRangePattern.FindStringSubmatch(input); len(m) == 3 {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo == nil && errHi == nil && hi >= lo {
			out := make([]int, 0, hi-lo+1)
			for e := lo; e <= hi; e++ {
				out = append(out, e)
			}
			return out
		}
	}

	seen := map[int]struct{}{}
	var out []int
	for _, m := range episodeListPattern.FindAllStringSubmatch(input, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	if rlsEpisode > 0 {
		return []int{rlsEpisode}
	}
	return nil
}
