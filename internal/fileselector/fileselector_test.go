package fileselector

import (
	"testing"

	"aiostreams/models"
)

func intp(i int) *int { return &i }

func TestSelectPicksExactEpisodeWithinSeasonPack(t *testing.T) {
	folder := "Show.S02.1080p.WEB-DL-GRP"
	candidates := []Candidate{
		{Index: 0, Filename: "Show.S02E01.1080p.WEB-DL.mkv", FolderName: folder, Size: 2_000_000_000},
		{Index: 1, Filename: "Show.S02E05.1080p.WEB-DL.mkv", FolderName: folder, Size: 2_100_000_000},
		{Index: 2, Filename: "Show.S02E10.1080p.WEB-DL.mkv", FolderName: folder, Size: 1_900_000_000},
	}
	req := Request{
		Metadata: models.SearchMetadata{PrimaryTitle: "Show"},
		ParsedID: models.ParsedId{MediaKind: models.MediaSeries, Season: intp(2), Episode: intp(5)},
	}
	got, err := Select(candidates, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Index != 1 {
		t.Fatalf("expected exact S02E05 file (index 1), got %d", got.Index)
	}
}

func TestSelectRejectsWrongEpisode(t *testing.T) {
	candidates := []Candidate{
		{Index: 0, Filename: "Show.S02E01.1080p.WEB-DL.mkv", Size: 2_000_000_000},
	}
	req := Request{
		Metadata: models.SearchMetadata{PrimaryTitle: "Show"},
		ParsedID: models.ParsedId{MediaKind: models.MediaSeries, Season: intp(2), Episode: intp(5)},
	}
	if _, err := Select(candidates, req); err != ErrNoMatchingFile {
		t.Fatalf("expected ErrNoMatchingFile, got %v", err)
	}
}

func TestSelectTieBreaksOnVideoThenSize(t *testing.T) {
	candidates := []Candidate{
		{Index: 0, Filename: "Movie.2020.1080p.nfo", Size: 1000},
		{Index: 1, Filename: "Movie.2020.1080p.mkv", Size: 5_000_000_000},
		{Index: 2, Filename: "Movie.2020.1080p.sample.mkv", Size: 10_000_000},
	}
	req := Request{Metadata: models.SearchMetadata{PrimaryTitle: "Movie"}, ParsedID: models.ParsedId{MediaKind: models.MediaMovie}}
	got, err := Select(candidates, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Index != 1 {
		t.Fatalf("expected the largest video file (index 1), got %d", got.Index)
	}
}

func TestSelectHonorsChosenFilename(t *testing.T) {
	candidates := []Candidate{
		{Index: 0, Filename: "Movie.2020.720p.mkv", Size: 1_000_000_000},
		{Index: 1, Filename: "Movie.2020.1080p.mkv", Size: 5_000_000_000},
	}
	req := Request{
		Metadata:       models.SearchMetadata{PrimaryTitle: "Movie"},
		ParsedID:       models.ParsedId{MediaKind: models.MediaMovie},
		ChosenFilename: "Movie.2020.720p.mkv",
	}
	got, err := Select(candidates, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Index != 0 {
		t.Fatalf("expected the explicitly chosen file (index 0), got %d", got.Index)
	}
}
