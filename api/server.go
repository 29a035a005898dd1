// Package api mounts the thin inbound HTTP surface spec.md §6 enumerates
// (manifest/stream/catalog/meta) onto a gorilla/mux router, the same
// router library and CORS-subrouter shape the teacher's own api.Register
// uses. Route plumbing beyond this contract (configuration UI, accounts)
// is an explicit Non-goal (spec.md §1).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"aiostreams/internal/idparser"
	"aiostreams/models"
	"aiostreams/services/aggregator"
	"aiostreams/services/library"
	"aiostreams/services/playback"
	"aiostreams/services/processor"
)

const requestTimeout = 25 * time.Second

// cachePlayTimeout bounds a cache-and-play resolve, covering the ~110s
// polling ceiling playback.Resolver's pollUntilDownloaded applies.
const cachePlayTimeout = 115 * time.Second

// ResolverBinding pairs one debrid service's playback.Resolver with the
// credential hash its cache keys are fingerprinted under (spec.md §4.11:
// "withLock(key=hash|service|credentialHash|metadata|filename|cacheAndPlay)").
type ResolverBinding struct {
	Resolver       *playback.Resolver
	CredentialHash string
}

// UserRuntime bundles the per-user wiring a request needs: the
// Aggregator built from that user's configured addon instances, their
// processor.Config (filters/sort/dedupe/autoplay), the library snapshot
// getter backing /catalog and /meta, and a ResolverBinding per debrid
// service backing the lazy playback-URL resolve route.
type UserRuntime struct {
	Aggregator          *aggregator.Aggregator
	Processor           processor.Config
	Library             func() (library.Snapshot, bool)
	Resolvers           map[string]ResolverBinding
	AvailabilityChecker processor.AvailabilityChecker
}

// Server answers the manifest/stream/catalog/meta routes for every
// configured user.
type Server struct {
	users map[string]UserRuntime
}

func NewServer(users map[string]UserRuntime) *Server {
	return &Server{users: users}
}

// Register mounts this server's routes onto r, scoped under
// "/{userId}" the way a Stremio addon manifest URL already encodes the
// user (spec.md §6's routes are otherwise anonymous).
func (s *Server) Register(r *mux.Router) {
	sub := r.PathPrefix("/{userId}").Subrouter()
	sub.Use(corsMiddleware)
	sub.HandleFunc("/manifest.json", s.handleManifest).Methods(http.MethodGet, http.MethodOptions)
	sub.HandleFunc("/stream/{type}/{id}.json", s.handleStream).Methods(http.MethodGet, http.MethodOptions)
	sub.HandleFunc("/stream/{type}/{id}", s.handleStream).Methods(http.MethodGet, http.MethodOptions)
	sub.HandleFunc("/catalog/{type}/{id}.json", s.handleCatalog).Methods(http.MethodGet, http.MethodOptions)
	sub.HandleFunc("/catalog/{type}/{id}/{extras}.json", s.handleCatalog).Methods(http.MethodGet, http.MethodOptions)
	sub.HandleFunc("/meta/{type}/{id}.json", s.handleMeta).Methods(http.MethodGet, http.MethodOptions)
	sub.HandleFunc("/resolve/{serviceId}", s.handleResolve).Methods(http.MethodGet)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) runtime(w http.ResponseWriter, r *http.Request) (UserRuntime, bool) {
	userID := mux.Vars(r)["userId"]
	rt, ok := s.users[userID]
	if !ok {
		http.Error(w, "unknown user", http.StatusNotFound)
		return UserRuntime{}, false
	}
	return rt, true
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.runtime(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          "community.aiostreams",
		"name":        "AIOStreams",
		"version":     "1.0.0",
		"resources":   []string{"stream", "catalog", "meta"},
		"types":       []string{"movie", "series", "anime"},
		"catalogs":    []map[string]string{{"type": "other", "id": "aiostreams.library"}},
		"idPrefixes":  []string{"tt", idparser.LibraryPrefix},
	})
}

// handleStream implements GET /stream/:type/:id(.json) (spec.md §6):
// parse the id, run it through the Aggregator then the Processor, and
// return the formatted ParsedStream list.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	mediaType := vars["type"]
	rawID := strings.TrimSuffix(vars["id"], ".json")

	parsedID, err := idparser.Parse(rawID, hintFor(mediaType))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"streams": []any{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result := rt.Aggregator.Resolve(ctx, aggregator.Request{MediaType: mediaType, ParsedID: parsedID})
	streams, err := processor.Process(ctx, result.Candidates, rt.Processor, rt.AvailabilityChecker)
	if err != nil {
		log.Printf("stream %s: processor error: %v", rawID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"streams": formatStreams(streams, mux.Vars(r)["userId"]),
		"errors":  result.Errors,
	})
}

// handleCatalog implements GET /catalog/:type/:id(/:extras).json over the
// LibrarySubsystem's owned-items listing (spec.md §4.6 Catalog).
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	if rt.Library == nil {
		writeJSON(w, http.StatusOK, map[string]any{"metas": []any{}})
		return
	}
	snapshot, ok := rt.Library()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"metas": []any{}})
		return
	}

	opts := library.CatalogOptions{Sort: library.SortAdded, Descending: true, PageSize: 100}
	q := parseExtras(mux.Vars(r)["extras"])
	if genre := q.Get("genre"); genre == "title" {
		opts.Sort = library.SortTitle
	}
	if search := q.Get("search"); search != "" {
		opts.Query = search
	}
	if skip := q.Get("skip"); skip != "" {
		if n, err := strconv.Atoi(skip); err == nil && opts.PageSize > 0 {
			opts.Page = n / opts.PageSize
		}
	}

	entries := library.Catalog(snapshot, opts)
	metas := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		metas = append(metas, map[string]any{
			"id":   e.Item.ID,
			"name": e.Title,
			"type": "other",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"metas": metas})
}

// handleMeta implements GET /meta/:type/:id.json for library-scoped ids
// (spec.md §4.6 Meta); external ids are out of this module's scope
// (spec.md §1 "rendering of display strings").
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	rawID := strings.TrimSuffix(vars["id"], ".json")

	libID, err := idparser.ParseLibraryId(rawID)
	if err != nil || rt.Library == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	snapshot, ok := rt.Library()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	for _, item := range snapshot.Items {
		if item.ID != libID.ItemID {
			continue
		}
		view := library.Meta(item, libID.ServiceID, libID.Kind, libID.ItemID)
		videos := make([]map[string]any, 0, len(view.Videos))
		for _, v := range view.Videos {
			videos = append(videos, map[string]any{"id": v.ID, "title": v.Filename, "size": v.Size})
		}
		writeJSON(w, http.StatusOK, map[string]any{"meta": map[string]any{
			"id":             rawID,
			"description":    view.Description,
			"videos":         videos,
			"defaultVideoId": view.DefaultVideoID,
		}})
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// handleResolve dereferences the opaque handle a stream entry's URL
// carries into an actual playback link (spec.md §4.11 PlaybackResolver),
// redirecting the client once the debrid service reports it as
// downloaded.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	serviceID := mux.Vars(r)["serviceId"]
	binding, ok := rt.Resolvers[serviceID]
	if !ok {
		http.Error(w, "unknown debrid service", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	info := models.PlaybackInfo{
		Type:          models.StreamKind(q.Get("type")),
		Hash:          q.Get("hash"),
		NZB:           q.Get("nzb"),
		DownloadURL:   q.Get("downloadUrl"),
		Filename:      q.Get("filename"),
		ServiceItemID: q.Get("serviceItemId"),
		Private:       q.Get("private") == "true",
		FileIndex:     intPtr(q.Get("fileIndex")),
		Index:         intPtr(q.Get("index")),
	}
	if sources, ok := q["source"]; ok {
		info.Sources = sources
	}
	if season, episode := intPtr(q.Get("season")), intPtr(q.Get("episode")); season != nil || episode != nil {
		info.Metadata = &models.PlaybackMetadata{
			Season:          season,
			Episode:         episode,
			AbsoluteEpisode: intPtr(q.Get("absoluteEpisode")),
		}
	}
	cacheAndPlay := q.Get("cacheAndPlay") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), cachePlayTimeout)
	defer cancel()

	url, err := binding.Resolver.Resolve(ctx, info, binding.CredentialHash, cacheAndPlay)
	if err != nil {
		log.Printf("resolve %s/%s: %v", serviceID, info.Hash, err)
		http.Error(w, "not playable", http.StatusNotFound)
		return
	}
	if url == "" {
		http.Error(w, "not cached yet", http.StatusAccepted)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// parseExtras decodes a Stremio-style catalog extras path segment
// ("search=foo&skip=20") the same way a real query string is parsed; an
// unparseable or empty segment just yields no extras.
func parseExtras(segment string) url.Values {
	if segment == "" {
		return url.Values{}
	}
	decoded, err := url.QueryUnescape(segment)
	if err != nil {
		decoded = segment
	}
	values, err := url.ParseQuery(decoded)
	if err != nil {
		return url.Values{}
	}
	return values
}

func intPtr(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func hintFor(mediaType string) idparser.Hint {
	kind := models.MediaMovie
	switch mediaType {
	case "series":
		kind = models.MediaSeries
	case "anime":
		kind = models.MediaAnime
	}
	return idparser.Hint{Namespace: models.NamespaceIMDB, MediaKind: kind}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// formatStreams projects the Processor's final ParsedStream list into the
// client-facing shape; rendering of display strings beyond this input
// contract is out of scope (spec.md §1). A debrid-backed candidate has no
// directly playable URL yet (spec.md §6: "each entry carries an opaque
// handle the client later dereferences via PlaybackResolver"), so it gets
// pointed at this server's own /resolve route instead of its raw hash.
func formatStreams(streams []models.ParsedStream, userID string) []map[string]any {
	out := make([]map[string]any, 0, len(streams))
	for _, st := range streams {
		url := st.URL
		if url == "" && st.Service != nil && st.InfoHash != "" {
			url = resolveURL(userID, st)
		}
		entry := map[string]any{
			"name":        st.Addon.Name,
			"description": st.ParsedFile.Title,
			"infoHash":    st.InfoHash,
			"url":         url,
			"behaviorHints": map[string]any{
				"bingeGroup": st.BingeGroup,
				"filename":   st.Filename,
			},
		}
		if st.Error != nil {
			entry["title"] = st.Error.Title
			entry["description"] = st.Error.Description
		}
		out = append(out, entry)
	}
	return out
}

func resolveURL(userID string, st models.ParsedStream) string {
	q := url.Values{}
	kind := st.Type
	if kind == models.KindDebrid {
		// The resolver generates links per torrent/usenet type; a debrid
		// candidate's info hash is a torrent hash.
		kind = models.KindTorrent
	}
	q.Set("type", string(kind))
	q.Set("hash", st.InfoHash)
	q.Set("filename", st.Filename)
	q.Set("cacheAndPlay", "true")
	if st.FileIndex != nil {
		q.Set("fileIndex", strconv.Itoa(*st.FileIndex))
	}
	if len(st.ParsedFile.Seasons) > 0 {
		q.Set("season", strconv.Itoa(st.ParsedFile.Seasons[0]))
	}
	if len(st.ParsedFile.Episodes) > 0 {
		q.Set("episode", strconv.Itoa(st.ParsedFile.Episodes[0]))
	}
	return fmt.Sprintf("/%s/resolve/%s?%s", userID, st.Service.ID, q.Encode())
}

