// Command aiostreams wires the aggregator's services into an HTTP addon
// server: load settings, build the cache/lock/debrid/addon/library layers,
// construct one Aggregator+Processor+PlaybackResolver per configured user,
// and serve the manifest/stream/catalog/meta/resolve routes spec.md §6
// names (plus the resolve route the client's lazy playback handle needs).
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"aiostreams/api"
	"aiostreams/config"
	"aiostreams/internal/cache"
	"aiostreams/internal/lock"
	"aiostreams/models"
	"aiostreams/services/addon"
	"aiostreams/services/aggregator"
	"aiostreams/services/debrid"
	"aiostreams/services/library"
	"aiostreams/services/metadata"
	"aiostreams/services/playback"
	"aiostreams/services/processor"
)

func main() {
	configPath := flag.String("config", "config/settings.json", "path to the settings JSON file")
	flag.Parse()

	fs := afero.NewOsFs()
	manager := config.NewManager(fs, *configPath)
	settings, err := manager.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	configureLogging(settings.Log)

	store, closeStore := buildCacheStore(fs, settings.Cache)
	defer closeStore()

	locks := lock.NewManager()

	providers := buildDebridProviders(settings.DebridServices)
	metaSvc := metadata.NewService(settings.Metadata.TMDBAPIKey, settings.Metadata.Language, store)
	presets := loadPresetCatalog(fs, settings.PresetCatalogPath)

	librarySubsystems := buildLibrarySubsystems(providers, store, locks, settings.Global)
	resolvers := buildResolverBindings(settings.DebridServices, providers, locks, store, settings.Global)
	checkAvailability := availabilityChecker(providers)

	users := make(map[string]api.UserRuntime, len(settings.Users))
	for _, user := range settings.Users {
		rt, err := buildUserRuntime(user, presets, providers, librarySubsystems, resolvers, checkAvailability, metaSvc, settings.Global)
		if err != nil {
			log.Printf("user %s: %v", user.ID, err)
			continue
		}
		users[user.ID] = rt
	}

	router := mux.NewRouter()
	api.NewServer(users).Register(router)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // covers a cache-and-play resolve's ~110s poll ceiling
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	waitForShutdown(srv)
}

func configureLogging(cfg config.LogSettings) {
	if cfg.File == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func buildCacheStore(fs afero.Fs, cfg config.CacheSettings) (*cache.Store, func()) {
	if cfg.Directory == "" {
		return cache.NewStore(cache.NewMemoryBackend(10000)), func() {}
	}
	dbPath := filepath.Join(cfg.Directory, "cache.db")
	backend, err := cache.NewDiskBackend(fs, dbPath)
	if err != nil {
		log.Printf("disk cache unavailable, falling back to in-memory: %v", err)
		return cache.NewStore(cache.NewMemoryBackend(10000)), func() {}
	}
	return cache.NewStore(backend), func() { _ = backend.Close() }
}

// buildDebridProviders constructs one debrid.Provider per enabled
// configured service (spec.md §4.5). Usenet-capable providers need a
// pre-built nntppool.UsenetConnectionPool this module doesn't construct
// (no pooled-connection source is configured anywhere in settings), so
// only the registered torrent-capable factories ("realdebrid", "torbox",
// "alldebrid")
// are reachable from configuration; a usenet provider can still be
// registered and wired in by a caller that builds its own pool.
func buildDebridProviders(services []config.DebridServiceConfig) map[string]debrid.Provider {
	providers := make(map[string]debrid.Provider, len(services))
	for _, svc := range services {
		if !svc.Enabled {
			continue
		}
		provider, err := debrid.New(svc.Provider, svc.Token)
		if err != nil {
			log.Printf("debrid service %s: %v", svc.ID, err)
			continue
		}
		providers[svc.ID] = provider
	}
	return providers
}

func loadPresetCatalog(fs afero.Fs, path string) []addon.Preset {
	if path == "" {
		return nil
	}
	f, err := fs.Open(path)
	if err != nil {
		log.Printf("preset catalog %s: %v", path, err)
		return nil
	}
	defer f.Close()

	presets, err := addon.LoadPresets(f)
	if err != nil {
		log.Printf("preset catalog %s: %v", path, err)
		return nil
	}
	return presets
}

func findPreset(presets []addon.Preset, id string) (addon.Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return addon.Preset{}, false
}

// buildLibrarySubsystems builds one library.Subsystem per debrid service
// that exposes an owned-items listing (spec.md §4.6), keyed by service id.
func buildLibrarySubsystems(providers map[string]debrid.Provider, store *cache.Store, locks *lock.Manager, global config.GlobalSettings) map[string]*library.Subsystem {
	out := make(map[string]*library.Subsystem, len(providers))
	for id, provider := range providers {
		if isTorrentCapable(provider) || isUsenetCapable(provider) {
			out[id] = library.New(store, locks, global.LibraryCacheTTL(), global.LibraryStaleThreshold())
		}
	}
	return out
}

func isTorrentCapable(p debrid.Provider) bool {
	_, ok := p.(debrid.TorrentCapable)
	return ok
}

func isUsenetCapable(p debrid.Provider) bool {
	_, ok := p.(debrid.UsenetCapable)
	return ok
}

// fetcherFor returns the library.Fetcher that pulls a fresh owned-items
// snapshot for one provider, dispatching on whichever capability it
// implements.
func fetcherFor(provider debrid.Provider) library.Fetcher {
	if tc, ok := provider.(debrid.TorrentCapable); ok {
		return tc.ListMagnets
	}
	if uc, ok := provider.(debrid.UsenetCapable); ok {
		return uc.ListNzbs
	}
	return func(ctx context.Context) ([]models.DebridDownload, error) { return nil, nil }
}

// availabilityChecker adapts one provider's CheckMagnets/CheckNzbs into
// the processor.AvailabilityChecker signature Process expects (spec.md
// §4.5 instant-availability feeding §4.9 step 4).
func availabilityChecker(providers map[string]debrid.Provider) processor.AvailabilityChecker {
	return func(ctx context.Context, serviceID string, hashes []string) (map[string]bool, error) {
		provider, ok := providers[serviceID]
		if !ok {
			return nil, fmt.Errorf("availability: unknown debrid service %q", serviceID)
		}

		var statuses map[string]debrid.CachedStatus
		var err error
		switch p := provider.(type) {
		case debrid.TorrentCapable:
			statuses, err = p.CheckMagnets(ctx, hashes, true)
		case debrid.UsenetCapable:
			statuses, err = p.CheckNzbs(ctx, hashes)
		default:
			return nil, fmt.Errorf("availability: service %q supports no capability check", serviceID)
		}
		if err != nil {
			return nil, err
		}

		out := make(map[string]bool, len(statuses))
		for hash, status := range statuses {
			out[hash] = status.Cached
		}
		return out, nil
	}
}

// buildResolverBindings constructs one playback.Resolver per debrid
// service, fingerprinted under a hash of its credential so cache keys
// never carry the raw token (spec.md §4.11's lock key includes
// credentialHash, not the credential itself).
func buildResolverBindings(services []config.DebridServiceConfig, providers map[string]debrid.Provider, locks *lock.Manager, store *cache.Store, global config.GlobalSettings) map[string]api.ResolverBinding {
	out := make(map[string]api.ResolverBinding, len(services))
	for _, svc := range services {
		provider, ok := providers[svc.ID]
		if !ok {
			continue
		}
		out[svc.ID] = api.ResolverBinding{
			Resolver:       playback.New(provider, locks, store, global.PlaybackLinkValidity(), false),
			CredentialHash: credentialHash(svc.Token),
		}
	}
	return out
}

// credentialHash derives the credentialHash used throughout cache and
// lock keys (spec.md §3, §4.6, §4.11) from a service's raw token, so raw
// tokens never themselves become cache or lock keys.
func credentialHash(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// buildUserRuntime assembles one user's Aggregator, Processor config, and
// library snapshot accessor into the api.UserRuntime the HTTP layer needs.
func buildUserRuntime(
	user config.UserConfig,
	presets []addon.Preset,
	providers map[string]debrid.Provider,
	librarySubsystems map[string]*library.Subsystem,
	resolvers map[string]api.ResolverBinding,
	checkAvailability processor.AvailabilityChecker,
	metaSvc *metadata.Service,
	global config.GlobalSettings,
) (api.UserRuntime, error) {
	var clients []addon.Client
	for _, presetCfg := range user.AddonPresets {
		catalogEntry, ok := findPreset(presets, presetCfg.PresetID)
		if !ok {
			log.Printf("user %s: unknown preset %q", user.ID, presetCfg.PresetID)
			continue
		}
		clients = append(clients, presetCfg.AddonClients(catalogEntry)...)
	}

	// One debrid service backs this user's library search and catalog view;
	// multi-account fan-out per user is left to future per-user service
	// scoping (spec.md §6 "Per user" names addon presets and filters, not
	// debrid-account selection).
	var librarySearch aggregator.LibrarySearch
	var libraryView func() (library.Snapshot, bool)
	for serviceID, subsystem := range librarySubsystems {
		provider := providers[serviceID]
		fetcher := fetcherFor(provider)
		serviceID, subsystem, fetcher := serviceID, subsystem, fetcher
		librarySearch = func(ctx context.Context, meta models.SearchMetadata, id models.ParsedId) ([]models.UnprocessedResult, error) {
			snapshot, err := subsystem.Get(ctx, serviceID, fetcher)
			if err != nil {
				return nil, err
			}
			return library.Search(snapshot, meta, id), nil
		}
		libraryView = func() (library.Snapshot, bool) {
			snapshot, err := subsystem.Get(context.Background(), serviceID, fetcher)
			if err != nil {
				return library.Snapshot{}, false
			}
			return snapshot, true
		}
		break
	}

	agg := aggregator.New(clients, metaSvc.Lookup, librarySearch, global.DefaultTimeout())

	procCfg, err := user.ProcessorConfig()
	if err != nil {
		return api.UserRuntime{}, err
	}

	return api.UserRuntime{
		Aggregator:          agg,
		Processor:           procCfg,
		Library:             libraryView,
		Resolvers:           resolvers,
		AvailabilityChecker: checkAvailability,
	}, nil
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
