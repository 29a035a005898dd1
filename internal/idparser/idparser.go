// Package idparser implements IdParser (C4): decoding the external
// identifier forms spec.md §4.4 lists into a models.ParsedId, and the
// reverse, canonical encoding.
package idparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Max-Sum/base32768"

	"aiostreams/models"
)

var (
	imdbPattern      = regexp.MustCompile(`^tt\d+$`)
	namespacedColon  = regexp.MustCompile(`^([a-z0-9]+):([^:]+)(?::(\d+):(\d+))?$`)
	namespacedDash   = regexp.MustCompile(`^([a-z0-9]+)-([A-Za-z0-9]+)$`)
	bareNumeric      = regexp.MustCompile(`^\d+$`)
	knownNamespaces  = map[models.IdNamespace]struct{}{
		models.NamespaceIMDB: {}, models.NamespaceTMDB: {}, models.NamespaceTVDB: {},
		models.NamespaceKitsu: {}, models.NamespaceAnilist: {}, models.NamespaceMAL: {},
	}
)

// Hint disambiguates forms the raw string can't decide on its own
// (namespace for bare numeric ids, and series-vs-movie for forms with no
// season/episode suffix).
type Hint struct {
	Namespace models.IdNamespace
	MediaKind models.MediaKind
}

// Parse decodes raw into a ParsedId. Recognized forms (spec.md §4.4):
//
//	tt<digits>                        -> imdb
//	<namespace>:<value>[:<s>:<e>]      -> namespace from the prefix
//	<namespace>-<value>                -> namespace from the prefix
//	<digits>                           -> namespace/mediaKind from hint
func Parse(raw string, hint Hint) (models.ParsedId, error) {
	raw = strings.TrimSpace(raw)

	if imdbPattern.MatchString(raw) {
		return finishParsedId(models.NamespaceIMDB, raw, "", "", hint)
	}

	if m := namespacedColon.FindStringSubmatch(raw); m != nil {
		ns := models.IdNamespace(strings.ToLower(m[1]))
		return finishParsedId(ns, raw, m[3], m[4], hint)
	}

	if m := namespacedDash.FindStringSubmatch(raw); m != nil {
		ns := models.IdNamespace(strings.ToLower(m[1]))
		return finishParsedId(ns, m[2], "", "", hint)
	}

	if bareNumeric.MatchString(raw) {
		if hint.Namespace == "" {
			return models.ParsedId{}, fmt.Errorf("idparser: bare numeric id %q requires a namespace hint", raw)
		}
		return finishParsedId(hint.Namespace, raw, "", "", hint)
	}

	return models.ParsedId{}, fmt.Errorf("idparser: unrecognized id form %q", raw)
}

func finishParsedId(ns models.IdNamespace, raw, seasonStr, episodeStr string, hint Hint) (models.ParsedId, error) {
	if _, ok := knownNamespaces[ns]; !ok {
		return models.ParsedId{}, fmt.Errorf("idparser: unknown namespace %q", ns)
	}

	value := raw
	if ns == models.NamespaceIMDB {
		value = raw
	} else if m := namespacedColon.FindStringSubmatch(raw); m != nil {
		value = m[2]
	}

	kind := hint.MediaKind
	var season, episode *int
	if seasonStr != "" && episodeStr != "" {
		s, errS := strconv.Atoi(seasonStr)
		e, errE := strconv.Atoi(episodeStr)
		if errS == nil && errE == nil {
			season, episode = &s, &e
			if kind == "" {
				kind = models.MediaSeries
			}
		}
	}
	if kind == "" {
		kind = models.MediaMovie
	}

	return models.ParsedId{
		Namespace: ns,
		Value:     value,
		MediaKind: kind,
		Season:    season,
		Episode:   episode,
	}, nil
}

// Canonical re-encodes a ParsedId to its canonical string form. Re-encoding
// is idempotent: Canonical(p) always yields the same string for equal p,
// and Parse(Canonical(p), hint-matching-p) reproduces p (§8 "ID
// round-trip").
func Canonical(p models.ParsedId) string {
	if p.Namespace == models.NamespaceIMDB {
		return p.Value
	}
	base := fmt.Sprintf("%s:%s", p.Namespace, p.Value)
	if p.Season != nil && p.Episode != nil {
		base += fmt.Sprintf(":%d:%d", *p.Season, *p.Episode)
	}
	return base
}

// LibraryPrefix is the fixed literal library-scoped id prefix (it contains
// internal dots, so parsers must anchor on it rather than blindly split on
// "."; spec.md §8).
const LibraryPrefix = "aiostreams.library"

// LibraryId is a decoded library-scoped identifier of the form
// "<LibraryPrefix>.<serviceId>.<kind>.<itemId>[:<fileId>]".
type LibraryId struct {
	ServiceID string
	Kind      string
	ItemID    string
	FileID    string // empty when no ":<fileId>" suffix was present
}

// ParseLibraryId decodes a library-scoped id, anchoring on LibraryPrefix
// and splitting the rest into at most three dot-separated parts, so itemId
// may itself contain dots (serviceId and kind may not).
func ParseLibraryId(raw string) (LibraryId, error) {
	prefix := LibraryPrefix + "."
	if !strings.HasPrefix(raw, prefix) {
		return LibraryId{}, fmt.Errorf("idparser: %q is not a library-scoped id", raw)
	}
	rest := strings.TrimPrefix(raw, prefix)

	parts := strings.SplitN(rest, ".", 3)
	if len(parts) != 3 {
		return LibraryId{}, fmt.Errorf("idparser: malformed library id %q", raw)
	}
	serviceID, kind, tail := parts[0], parts[1], parts[2]

	itemID, fileID := tail, ""
	if idx := strings.LastIndex(tail, ":"); idx >= 0 {
		itemID, fileID = tail[:idx], tail[idx+1:]
	}
	if serviceID == "" || kind == "" || itemID == "" {
		return LibraryId{}, fmt.Errorf("idparser: malformed library id %q", raw)
	}

	return LibraryId{ServiceID: serviceID, Kind: kind, ItemID: itemID, FileID: fileID}, nil
}

// EncodeLibraryId is the inverse of ParseLibraryId.
func EncodeLibraryId(id LibraryId) string {
	s := fmt.Sprintf("%s.%s.%s.%s", LibraryPrefix, id.ServiceID, id.Kind, id.ItemID)
	if id.FileID != "" {
		s += ":" + id.FileID
	}
	return s
}

// EncodeDigest compactly encodes an arbitrary content digest (used as the
// usenet hash/itemId form spec.md §3 allows in place of an info-hash) into
// a short non-hex string, so digests derived from larger hash sizes don't
// bloat library-scoped ids the way a hex encoding would.
func EncodeDigest(digest []byte) string {
	return base32768.StdEncoding.EncodeToString(digest)
}

// DecodeDigest is the inverse of EncodeDigest.
func DecodeDigest(encoded string) ([]byte, error) {
	return base32768.StdEncoding.DecodeString(encoded)
}
