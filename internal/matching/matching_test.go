package matching

import (
	"testing"

	"aiostreams/models"
)

func intp(i int) *int { return &i }

func TestMatchesSeriesSeasonPackValidForAnyEpisode(t *testing.T) {
	candidate := models.ParsedFile{Seasons: []int{2}, SeasonPack: true}
	req := SeriesRequest{Season: intp(2), Episode: intp(5)}
	if !MatchesSeries(candidate, req) {
		t.Fatalf("season pack should match any episode in the declared season")
	}
	req.Season = intp(3)
	if MatchesSeries(candidate, req) {
		t.Fatalf("season pack for season 2 should not match a season 3 request")
	}
}

func TestMatchesSeriesExactEpisode(t *testing.T) {
	candidate := models.ParsedFile{Seasons: []int{2}, Episodes: []int{5}}
	if !MatchesSeries(candidate, SeriesRequest{Season: intp(2), Episode: intp(5)}) {
		t.Fatalf("expected exact S02E05 match")
	}
	if MatchesSeries(candidate, SeriesRequest{Season: intp(2), Episode: intp(6)}) {
		t.Fatalf("expected no match for a different episode")
	}
}

func TestMatchesSeriesAbsoluteEpisode(t *testing.T) {
	candidate := models.ParsedFile{Episodes: []int{1153}}
	if !MatchesSeries(candidate, SeriesRequest{AbsoluteEpisode: intp(1153)}) {
		t.Fatalf("expected absolute episode match")
	}
}

func TestMatchesTitleThreshold(t *testing.T) {
	if !MatchesTitle("Breaking.Bad.S01E01.1080p", []string{"Breaking Bad"}, 0.85) {
		t.Fatalf("expected match above threshold")
	}
	if MatchesTitle("Totally Different Show", []string{"Breaking Bad"}, 0.85) {
		t.Fatalf("expected no match below threshold")
	}
}
