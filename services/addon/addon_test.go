package addon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStremioClientNormalizesStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"streams": []map[string]any{
				{
					"name":     "Torrentio",
					"title":    "Show.S02E05.1080p.WEB-DL\n💾 2.1 GB 👤 45",
					"infoHash": "ABCDEF0123456789ABCDEF0123456789ABCDEF01",
				},
				{
					"name": "Torrentio",
					"title": "no hash or url, should be dropped",
				},
			},
		})
	}))
	defer srv.Close()

	c := NewStremioClient(StremioConfig{
		Name:    "Torrentio",
		ID:      "torrentio.0",
		BaseURL: srv.URL,
		Caps:    []Capability{CapabilityStreams},
		Timeout: 5 * time.Second,
	})

	res := c.GetStreams(context.Background(), "series", "tt1234567:2:5")
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Streams) != 1 {
		t.Fatalf("expected exactly one surviving stream, got %d", len(res.Streams))
	}
	got := res.Streams[0]
	if got.Hash != "abcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("expected lowercased info hash, got %q", got.Hash)
	}
	if got.SizeBytes == 0 {
		t.Fatalf("expected size parsed from emoji-tagged title")
	}
	if got.Seeders == nil || *got.Seeders != 45 {
		t.Fatalf("expected seeders parsed from emoji-tagged title, got %v", got.Seeders)
	}
}

func TestStremioClientReportsUpstreamErrorWithoutAborting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewStremioClient(StremioConfig{
		Name:    "Broken",
		ID:      "broken.0",
		BaseURL: srv.URL,
		Caps:    []Capability{CapabilityStreams},
	})

	res := c.GetStreams(context.Background(), "movie", "tt7654321")
	if len(res.Streams) != 0 {
		t.Fatalf("expected no streams on upstream error")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected exactly one AddonError, got %d", len(res.Errors))
	}
}

func TestExpandDropsP2POnlyPresetWithoutOptIn(t *testing.T) {
	preset := Preset{ID: "p2p-scraper", Name: "P2P", IsP2P: true, Capabilities: []Capability{CapabilityStreams}}
	clients := Expand(preset, []InstanceConfig{{PresetID: "p2p-scraper"}})
	if len(clients) != 0 {
		t.Fatalf("expected P2P preset to be dropped without includeP2P, got %d clients", len(clients))
	}

	clients = Expand(preset, []InstanceConfig{{PresetID: "p2p-scraper", IncludeP2P: true}})
	if len(clients) != 1 {
		t.Fatalf("expected P2P preset to expand once includeP2P is set, got %d", len(clients))
	}
}

func TestExpandHonorsMultipleInstances(t *testing.T) {
	preset := Preset{ID: "jackett", Name: "Jackett", SupportsMultipleInstances: true, Capabilities: []Capability{CapabilityStreams}}
	instances := []InstanceConfig{
		{PresetID: "jackett", BaseURL: "https://one.example"},
		{PresetID: "jackett", BaseURL: "https://two.example"},
	}
	clients := Expand(preset, instances)
	if len(clients) != 2 {
		t.Fatalf("expected two instances, got %d", len(clients))
	}
	if clients[0].ID() == clients[1].ID() {
		t.Fatalf("expected distinct instance ids, both were %q", clients[0].ID())
	}
}

func TestExpandSingleInstanceIgnoresExtras(t *testing.T) {
	preset := Preset{ID: "torrentio", Name: "Torrentio", Capabilities: []Capability{CapabilityStreams}}
	instances := []InstanceConfig{
		{PresetID: "torrentio", BaseURL: "https://one.example"},
		{PresetID: "torrentio", BaseURL: "https://two.example"},
	}
	clients := Expand(preset, instances)
	if len(clients) != 1 {
		t.Fatalf("expected single-instance preset to ignore extras, got %d", len(clients))
	}
}
