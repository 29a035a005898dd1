package processor

import (
	"fmt"
	"regexp"
	"strings"

	"aiostreams/models"
)

// ListRule is a required/excluded/included allow-or-deny-list constraint
// over one string attribute (spec.md §4.10 step (c)): "included" wins
// outright, "required" means the candidate's value must be in Required,
// "excluded" means it must not be in Excluded.
type ListRule struct {
	Required []string `json:"required,omitempty"`
	Excluded []string `json:"excluded,omitempty"`
	Included []string `json:"included,omitempty"`
}

func (r ListRule) allows(values []string) bool {
	if containsAny(r.Included, values) {
		return true
	}
	if len(r.Required) > 0 && !containsAny(r.Required, values) {
		return false
	}
	if containsAny(r.Excluded, values) {
		return false
	}
	return true
}

func containsAny(set []string, values []string) bool {
	if len(set) == 0 {
		return false
	}
	for _, v := range values {
		for _, s := range set {
			if strings.EqualFold(v, s) {
				return true
			}
		}
	}
	return false
}

// SizeRange bounds a candidate's size in bytes; zero means unbounded.
type SizeRange struct {
	MinBytes int64 `json:"minBytes,omitempty"`
	MaxBytes int64 `json:"maxBytes,omitempty"`
}

func (r SizeRange) allows(size int64) bool {
	if r.MinBytes > 0 && size < r.MinBytes {
		return false
	}
	if r.MaxBytes > 0 && size > r.MaxBytes {
		return false
	}
	return true
}

// RegexRules composes the five regex lists of spec.md §4.10 step (c):
// each pattern is evaluated against a canonical string built from the
// candidate's filename, parsed title and message.
type RegexRules struct {
	Include  []*regexp.Regexp // at least one must match if non-empty
	Exclude  []*regexp.Regexp // none may match
	Required []*regexp.Regexp // every pattern must match
	// Preferred and Ranked don't reject; the sort step does not read them.
	Preferred []*regexp.Regexp
	Ranked    []*regexp.Regexp
}

func (r RegexRules) allows(subject string) bool {
	if len(r.Include) > 0 && !anyMatch(r.Include, subject) {
		return false
	}
	if anyMatch(r.Exclude, subject) {
		return false
	}
	for _, re := range r.Required {
		if !re.MatchString(subject) {
			return false
		}
	}
	return true
}

func anyMatch(patterns []*regexp.Regexp, subject string) bool {
	for _, re := range patterns {
		if re.MatchString(subject) {
			return true
		}
	}
	return false
}

// rank returns the highest-priority Ranked pattern index that matches
// (lower index = higher rank), or -1 when nothing matches.
func (r RegexRules) rank(subject string) int {
	for i, re := range r.Ranked {
		if re.MatchString(subject) {
			return i
		}
	}
	return -1
}

func (r RegexRules) preferredScore(subject string) int {
	score := 0
	for _, re := range r.Preferred {
		if re.MatchString(subject) {
			score++
		}
	}
	return score
}

// FilterConfig bundles every step-(c) constraint. Allow/deny-list
// constraints are AND-composed in the order spec.md §4.10 lists them.
type FilterConfig struct {
	Resolution    ListRule
	Quality       ListRule
	Encode        ListRule
	StreamType    ListRule
	VisualTag     ListRule
	AudioTag      ListRule
	AudioChannel  ListRule
	Language      ListRule
	SizeByResolution map[string]SizeRange
	SeederFloor   int // only applied to p2p-typed candidates
	AgeCeilingHours float64
	Regex         RegexRules
}

// applyFilter implements step (c). It never mutates streams in place;
// it returns the surviving subset.
func applyFilter(streams []models.ParsedStream, cfg FilterConfig) []models.ParsedStream {
	out := make([]models.ParsedStream, 0, len(streams))
	for _, s := range streams {
		if passesFilter(s, cfg) {
			out = append(out, s)
		}
	}
	return out
}

func passesFilter(s models.ParsedStream, cfg FilterConfig) bool {
	if s.ParsedFile.Resolution != "" && !cfg.Resolution.allows([]string{s.ParsedFile.Resolution}) {
		return false
	}
	if s.ParsedFile.Quality != "" && !cfg.Quality.allows([]string{s.ParsedFile.Quality}) {
		return false
	}
	if s.ParsedFile.Encode != "" && !cfg.Encode.allows([]string{s.ParsedFile.Encode}) {
		return false
	}
	if !cfg.StreamType.allows([]string{string(s.Type)}) {
		return false
	}
	if len(s.ParsedFile.VisualTags) > 0 && !cfg.VisualTag.allows(s.ParsedFile.VisualTags) {
		return false
	}
	if len(s.ParsedFile.AudioTags) > 0 && !cfg.AudioTag.allows(s.ParsedFile.AudioTags) {
		return false
	}
	if len(s.ParsedFile.AudioChannels) > 0 && !cfg.AudioChannel.allows(s.ParsedFile.AudioChannels) {
		return false
	}
	if len(s.Languages) > 0 && !cfg.Language.allows(s.Languages) {
		return false
	}

	if sr, ok := cfg.SizeByResolution[s.ParsedFile.Resolution]; ok && !sr.allows(s.Size) {
		return false
	}

	if s.Type == models.KindP2P && cfg.SeederFloor > 0 {
		if s.Seeders == nil || *s.Seeders < cfg.SeederFloor {
			return false
		}
	}

	if cfg.AgeCeilingHours > 0 && s.AgeHours != nil && *s.AgeHours > cfg.AgeCeilingHours {
		return false
	}

	subject := canonicalSubject(s)
	if !cfg.Regex.allows(subject) {
		return false
	}

	return true
}

func canonicalSubject(s models.ParsedStream) string {
	return fmt.Sprintf("%s %s %s", s.Filename, s.ParsedFile.Title, s.Message)
}
