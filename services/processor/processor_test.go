package processor

import (
	"context"
	"testing"

	"aiostreams/models"
)

func sampleCandidates() []models.UnprocessedResult {
	return []models.UnprocessedResult{
		{Kind: models.KindDebrid, Hash: "aaa", Title: "Show.S01E01.1080p.WEB-DL.mkv", SizeBytes: 3 << 30, AddonID: "rd", AddonName: "RealDebrid"},
		{Kind: models.KindDebrid, Hash: "aaa", Title: "Show.S01E01.1080p.WEB-DL.mkv", SizeBytes: 3 << 30, AddonID: "tb", AddonName: "TorBox"},
		{Kind: models.KindP2P, Hash: "aaa", Title: "Show.S01E01.1080p.WEB-DL.mkv", SizeBytes: 3 << 30, AddonID: "p2p", AddonName: "Public"},
		{Kind: models.KindDebrid, Hash: "bbb", Title: "Show.S01E01.720p.WEB-DL.mkv", SizeBytes: 1 << 30, AddonID: "rd", AddonName: "RealDebrid"},
	}
}

func TestEnrichDropsEmptyTitles(t *testing.T) {
	candidates := append(sampleCandidates(), models.UnprocessedResult{Kind: models.KindDebrid, Hash: "ccc"})
	streams := enrich(candidates)
	if len(streams) != len(sampleCandidates()) {
		t.Fatalf("expected empty-titled candidate dropped, got %d streams", len(streams))
	}
}

func TestProcessFiltersByResolution(t *testing.T) {
	cfg := Config{
		Filter: FilterConfig{Resolution: ListRule{Required: []string{"1080p"}}},
	}
	streams, err := Process(context.Background(), sampleCandidates(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range streams {
		if s.ParsedFile.Resolution != "1080p" {
			t.Fatalf("expected only 1080p streams to survive, got %q", s.ParsedFile.Resolution)
		}
	}
}

func TestProcessSortsBySizeDescending(t *testing.T) {
	cfg := Config{Sort: []SortRule{{Field: SortBySize, Descending: true}}}
	streams, err := Process(context.Background(), sampleCandidates(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(streams); i++ {
		if streams[i].Size > streams[i-1].Size {
			t.Fatalf("expected descending size order, got %d after %d", streams[i].Size, streams[i-1].Size)
		}
	}
}

func TestDedupeConservativeKeepsOnePerServiceAndNeverDropsOnlyP2P(t *testing.T) {
	streams := enrich(sampleCandidates())
	out := dedupe(streams, DedupeConservative)

	byHashService := map[string]int{}
	for _, s := range out {
		byHashService[s.InfoHash+"|"+serviceOf(s)]++
	}
	for k, count := range byHashService {
		if count > 1 {
			t.Fatalf("expected at most one survivor per service per hash, got %d for %s", count, k)
		}
	}

	// hash "aaa" has two debrid services plus one p2p: conservative keeps
	// one entry per debrid service, and drops the p2p since a debrid
	// source remains.
	var aaaCount int
	for _, s := range out {
		if s.InfoHash == "aaa" {
			aaaCount++
		}
	}
	if aaaCount != 2 {
		t.Fatalf("expected 2 survivors for hash 'aaa' (one per debrid service), got %d", aaaCount)
	}
}

func TestDedupeConservativeNeverDropsOnlyP2PSource(t *testing.T) {
	onlyP2P := []models.ParsedStream{
		{Type: models.KindP2P, InfoHash: "zzz"},
	}
	out := dedupeConservative(onlyP2P)
	if len(out) != 1 {
		t.Fatalf("expected the lone p2p candidate to survive, got %d", len(out))
	}
}

func TestDedupeIdempotent(t *testing.T) {
	streams := enrich(sampleCandidates())
	once := dedupe(streams, DedupeAggressive)
	twice := dedupe(once, DedupeAggressive)
	if len(once) != len(twice) {
		t.Fatalf("expected dedupe to be idempotent, got %d then %d", len(once), len(twice))
	}
}

func TestTagBingeGroupsOnlyWhenAutoplayEnabled(t *testing.T) {
	streams := enrich(sampleCandidates())
	tagBingeGroups(streams, false)
	for _, s := range streams {
		if s.BingeGroup != "" {
			t.Fatalf("expected no binge group when autoplay disabled")
		}
	}
	tagBingeGroups(streams, true)
	for _, s := range streams {
		if s.BingeGroup == "" {
			t.Fatalf("expected a binge group once autoplay is enabled")
		}
	}
}

func TestCheckAvailabilityStampsCachedFlag(t *testing.T) {
	streams := enrich(sampleCandidates())
	check := func(ctx context.Context, serviceID string, hashes []string) (map[string]bool, error) {
		return map[string]bool{"aaa": true}, nil
	}
	if err := checkAvailability(context.Background(), streams, check); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range streams {
		if s.InfoHash == "aaa" && s.Service != nil && !s.Service.Cached {
			t.Fatalf("expected hash 'aaa' debrid streams to be marked cached")
		}
	}
}
