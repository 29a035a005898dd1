package idparser

import (
	"testing"

	"aiostreams/models"
)

func intp(i int) *int { return &i }

func TestParseImdb(t *testing.T) {
	p, err := Parse("tt1234567", Hint{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Namespace != models.NamespaceIMDB || p.Value != "tt1234567" || p.MediaKind != models.MediaMovie {
		t.Fatalf("unexpected parse result: %+v", p)
	}
}

func TestParseNamespacedColonWithEpisode(t *testing.T) {
	p, err := Parse("tmdb:12345:2:5", Hint{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Namespace != models.NamespaceTMDB || p.Value != "12345" || !p.IsSeries() {
		t.Fatalf("unexpected parse result: %+v", p)
	}
	if p.Season == nil || *p.Season != 2 || p.Episode == nil || *p.Episode != 5 {
		t.Fatalf("expected season 2 episode 5, got %+v", p)
	}
}

func TestParseNamespacedDash(t *testing.T) {
	p, err := Parse("tvdb-98765", Hint{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Namespace != models.NamespaceTVDB || p.Value != "98765" {
		t.Fatalf("unexpected parse result: %+v", p)
	}
}

func TestParseBareNumericRequiresHint(t *testing.T) {
	if _, err := Parse("555", Hint{}); err == nil {
		t.Fatalf("expected error for bare numeric id with no hint")
	}
	p, err := Parse("555", Hint{Namespace: models.NamespaceAnilist, MediaKind: models.MediaAnime})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Namespace != models.NamespaceAnilist || p.Value != "555" {
		t.Fatalf("unexpected parse result: %+v", p)
	}
}

func TestParseRejectsUnknownForm(t *testing.T) {
	if _, err := Parse("not-an-id-at-all!!", Hint{}); err == nil {
		t.Fatalf("expected error for unrecognized form")
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	cases := []models.ParsedId{
		{Namespace: models.NamespaceIMDB, Value: "tt1234567", MediaKind: models.MediaMovie},
		{Namespace: models.NamespaceTMDB, Value: "12345", MediaKind: models.MediaSeries, Season: intp(2), Episode: intp(5)},
		{Namespace: models.NamespaceTVDB, Value: "98765", MediaKind: models.MediaMovie},
	}
	for _, want := range cases {
		canon := Canonical(want)
		var hint Hint
		if want.Season != nil && want.Episode != nil {
			hint.MediaKind = models.MediaSeries
		}
		got, err := Parse(canon, hint)
		if err != nil {
			t.Fatalf("re-parsing canonical form %q: %v", canon, err)
		}
		if Canonical(got) != canon {
			t.Fatalf("encode(parse(id)) != canonical(id): got %q want %q", Canonical(got), canon)
		}
	}
}

func TestParseLibraryIdRoundTrip(t *testing.T) {
	raw := LibraryPrefix + ".realdebrid.torrent.abcdef0123456789abcdef0123456789abcdef01:3"
	lib, err := ParseLibraryId(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lib.ServiceID != "realdebrid" || lib.Kind != "torrent" || lib.FileID != "3" {
		t.Fatalf("unexpected parse result: %+v", lib)
	}
	if EncodeLibraryId(lib) != raw {
		t.Fatalf("round-trip mismatch: got %q want %q", EncodeLibraryId(lib), raw)
	}
}

func TestParseLibraryIdWithoutFileID(t *testing.T) {
	raw := LibraryPrefix + ".torbox.usenet.digest123"
	lib, err := ParseLibraryId(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lib.FileID != "" {
		t.Fatalf("expected no fileID, got %q", lib.FileID)
	}
	if EncodeLibraryId(lib) != raw {
		t.Fatalf("round-trip mismatch: got %q want %q", EncodeLibraryId(lib), raw)
	}
}

func TestParseLibraryIdRejectsWrongPrefix(t *testing.T) {
	if _, err := ParseLibraryId("some.other.prefix.service.kind.item"); err == nil {
		t.Fatalf("expected error for non-library id")
	}
}

func TestEncodeDecodeDigestRoundTrip(t *testing.T) {
	digest := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04, 0x05}
	encoded := EncodeDigest(digest)
	decoded, err := DecodeDigest(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != string(digest) {
		t.Fatalf("round-trip mismatch: got %x want %x", decoded, digest)
	}
}
