package processor

import (
	"strconv"

	"aiostreams/models"
)

// DedupePolicy selects how step (e) collapses candidates sharing a
// logical-stream key (spec.md §4.10 step (e)).
type DedupePolicy string

const (
	DedupeConservative DedupePolicy = "conservative"
	DedupeAggressive   DedupePolicy = "aggressive"
	DedupeKeepAll      DedupePolicy = "keep_all"
)

// dedupe implements step (e). Input order is assumed already sorted by
// step (d); within a group the first-encountered survivor per policy
// keeps its position, so dedupe never reorders what step (d) decided.
// Groups are keyed on {hash, fileIndex|default}, so the same hash offered
// through different services lands in one group.
// dedupe(dedupe(xs)) == dedupe(xs) for every policy: re-selecting from an
// already-deduplicated group reproduces the same survivors.
func dedupe(streams []models.ParsedStream, policy DedupePolicy) []models.ParsedStream {
	if policy == DedupeKeepAll || policy == "" {
		return streams
	}

	groups := make(map[string][]models.ParsedStream)
	var order []string
	for _, s := range streams {
		fileIndex := "default"
		if s.FileIndex != nil {
			fileIndex = strconv.Itoa(*s.FileIndex)
		}
		key := s.InfoHash + "|" + fileIndex
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}

	out := make([]models.ParsedStream, 0, len(streams))
	for _, key := range order {
		group := groups[key]
		switch policy {
		case DedupeAggressive:
			out = append(out, dedupeAggressive(group)...)
		default:
			out = append(out, dedupeConservative(group)...)
		}
	}
	return out
}

// dedupeConservative keeps at most one candidate per service within a
// hash group, preferring cached over uncached, but never drops a p2p
// candidate if it's the only remaining source for that hash.
func dedupeConservative(group []models.ParsedStream) []models.ParsedStream {
	bestByService := make(map[string]models.ParsedStream)
	var serviceOrder []string
	var p2p []models.ParsedStream

	for _, s := range group {
		if s.Type == models.KindP2P {
			p2p = append(p2p, s)
			continue
		}
		svc := serviceOf(s)
		existing, ok := bestByService[svc]
		if !ok {
			serviceOrder = append(serviceOrder, svc)
			bestByService[svc] = s
			continue
		}
		if cachedOf(s) && !cachedOf(existing) {
			bestByService[svc] = s
		}
	}

	out := make([]models.ParsedStream, 0, len(serviceOrder)+1)
	for _, svc := range serviceOrder {
		out = append(out, bestByService[svc])
	}
	if len(out) == 0 {
		// No debrid source survived: the p2p candidates are the only
		// remaining source for this hash, so they're never dropped.
		return p2p
	}
	return out
}

// dedupeAggressive drops every uncached and p2p candidate in a group
// once any cached candidate exists for that hash.
func dedupeAggressive(group []models.ParsedStream) []models.ParsedStream {
	hasCached := false
	for _, s := range group {
		if cachedOf(s) {
			hasCached = true
			break
		}
	}
	if !hasCached {
		return dedupeConservative(group)
	}

	out := make([]models.ParsedStream, 0, len(group))
	for _, s := range group {
		if cachedOf(s) {
			out = append(out, s)
		}
	}
	return out
}
