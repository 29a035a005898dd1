// Package config loads and persists the aggregator's JSON configuration
// (spec.md §6: global options, per-debrid-service credentials, per-addon-
// preset selection, per-user processing rules), the same afero-backed
// JSON-file Manager shape the teacher uses for its own settings.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"aiostreams/services/addon"
	"aiostreams/services/processor"
)

// GlobalSettings holds the non-per-entity options enumerated in spec.md
// §6: timeouts, library pagination/caching, playback link validity, and
// the instant-availability/search cache TTLs.
type GlobalSettings struct {
	DefaultTimeoutSeconds              int  `json:"defaultTimeoutSeconds"`
	MaxTimeoutSeconds                  int  `json:"maxTimeoutSeconds"`
	MinTimeoutSeconds                  int  `json:"minTimeoutSeconds"`
	LibraryPageSize                    int  `json:"libraryPageSize"`
	LibraryPageLimit                   int  `json:"libraryPageLimit"`
	LibraryCacheTTLSeconds             int  `json:"libraryCacheTtlSeconds"`
	LibraryStaleThresholdSeconds       int  `json:"libraryStaleThresholdSeconds"`
	PlaybackLinkValiditySeconds        int  `json:"playbackLinkValiditySeconds"`
	InstantAvailabilityCacheTTLSeconds int  `json:"instantAvailabilityCacheTtlSeconds"`
	SearchCacheTTLSeconds              int  `json:"searchCacheTtlSeconds"`
	UseTorrentDownloadURL              bool `json:"useTorrentDownloadUrl"`
}

func (g GlobalSettings) DefaultTimeout() time.Duration {
	return time.Duration(g.DefaultTimeoutSeconds) * time.Second
}

func (g GlobalSettings) MaxTimeout() time.Duration { return time.Duration(g.MaxTimeoutSeconds) * time.Second }
func (g GlobalSettings) MinTimeout() time.Duration { return time.Duration(g.MinTimeoutSeconds) * time.Second }
func (g GlobalSettings) LibraryCacheTTL() time.Duration {
	return time.Duration(g.LibraryCacheTTLSeconds) * time.Second
}
func (g GlobalSettings) LibraryStaleThreshold() time.Duration {
	return time.Duration(g.LibraryStaleThresholdSeconds) * time.Second
}
func (g GlobalSettings) PlaybackLinkValidity() time.Duration {
	return time.Duration(g.PlaybackLinkValiditySeconds) * time.Second
}
func (g GlobalSettings) InstantAvailabilityCacheTTL() time.Duration {
	return time.Duration(g.InstantAvailabilityCacheTTLSeconds) * time.Second
}
func (g GlobalSettings) SearchCacheTTL() time.Duration {
	return time.Duration(g.SearchCacheTTLSeconds) * time.Second
}

// DebridServiceConfig is one configured debrid backend (spec.md §6 "Per
// debrid service"). Provider selects the registered debrid.Provider
// factory (see services/debrid.RegisterProvider); Credentials carries
// any provider-specific fields beyond a bare API token (host/port for
// self-hosted services, account ids, etc).
type DebridServiceConfig struct {
	ID          string            `json:"id"`
	Provider    string            `json:"provider"`
	Token       string            `json:"token"`
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// AddonPresetConfig selects one catalog addon.Preset and overrides its
// defaults (spec.md §6 "Per addon preset"). Services expands into one
// addon.InstanceConfig per listed debrid service id; AddonClients renders
// the preset's OptionTemplate (when set) with that service substituted for
// "{{option}}", so the addon package receives Options already rendered.
type AddonPresetConfig struct {
	PresetID             string   `json:"presetId"`
	Name                 string   `json:"name,omitempty"`
	URL                  string   `json:"url,omitempty"`
	TimeoutSeconds       int      `json:"timeoutSeconds,omitempty"`
	IncludeP2P           bool     `json:"includeP2p,omitempty"`
	UseMultipleInstances bool     `json:"useMultipleInstances,omitempty"`
	Services             []string `json:"services,omitempty"`
	MediaTypes           []string `json:"mediaTypes,omitempty"`
	Sources              []string `json:"sources,omitempty"`
}

func (p AddonPresetConfig) timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (p AddonPresetConfig) instances() []addon.InstanceConfig {
	if len(p.Services) == 0 {
		return []addon.InstanceConfig{{
			PresetID:   p.PresetID,
			Name:       p.Name,
			BaseURL:    p.URL,
			Timeout:    p.timeout(),
			IncludeP2P: p.IncludeP2P,
		}}
	}
	instances := make([]addon.InstanceConfig, 0, len(p.Services))
	for _, service := range p.Services {
		instances = append(instances, addon.InstanceConfig{
			PresetID:   p.PresetID,
			Name:       p.Name,
			BaseURL:    p.URL,
			Options:    service,
			Timeout:    p.timeout(),
			IncludeP2P: p.IncludeP2P,
		})
	}
	return instances
}

// RegexPatternsConfig is the JSON-serializable form of processor.RegexRules
// (which holds compiled *regexp.Regexp and so cannot round-trip through
// JSON directly). Compile validates every pattern at config-load time
// rather than deferring the failure to the first matching attempt.
type RegexPatternsConfig struct {
	Include   []string `json:"include,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
	Required  []string `json:"required,omitempty"`
	Preferred []string `json:"preferred,omitempty"`
	Ranked    []string `json:"ranked,omitempty"`
}

func (c RegexPatternsConfig) compile() (processor.RegexRules, error) {
	include, err := compilePatterns(c.Include)
	if err != nil {
		return processor.RegexRules{}, fmt.Errorf("regex.include: %w", err)
	}
	exclude, err := compilePatterns(c.Exclude)
	if err != nil {
		return processor.RegexRules{}, fmt.Errorf("regex.exclude: %w", err)
	}
	required, err := compilePatterns(c.Required)
	if err != nil {
		return processor.RegexRules{}, fmt.Errorf("regex.required: %w", err)
	}
	preferred, err := compilePatterns(c.Preferred)
	if err != nil {
		return processor.RegexRules{}, fmt.Errorf("regex.preferred: %w", err)
	}
	ranked, err := compilePatterns(c.Ranked)
	if err != nil {
		return processor.RegexRules{}, fmt.Errorf("regex.ranked: %w", err)
	}
	return processor.RegexRules{
		Include:   include,
		Exclude:   exclude,
		Required:  required,
		Preferred: preferred,
		Ranked:    ranked,
	}, nil
}

// FilterSettings is the JSON form of processor.FilterConfig.
type FilterSettings struct {
	Resolution       processor.ListRule             `json:"resolution,omitempty"`
	Quality          processor.ListRule             `json:"quality,omitempty"`
	Encode           processor.ListRule             `json:"encode,omitempty"`
	StreamType       processor.ListRule             `json:"streamType,omitempty"`
	VisualTag        processor.ListRule             `json:"visualTag,omitempty"`
	AudioTag         processor.ListRule             `json:"audioTag,omitempty"`
	AudioChannel     processor.ListRule             `json:"audioChannel,omitempty"`
	Language         processor.ListRule             `json:"language,omitempty"`
	SizeByResolution map[string]processor.SizeRange `json:"sizeByResolution,omitempty"`
	SeederFloor      int                            `json:"seederFloor,omitempty"`
	AgeCeilingHours  float64                         `json:"ageCeilingHours,omitempty"`
	Regex            RegexPatternsConfig             `json:"regex,omitempty"`
}

// Resolve compiles the regex patterns and builds the processor.FilterConfig
// the Processor actually consumes.
func (f FilterSettings) Resolve() (processor.FilterConfig, error) {
	regex, err := f.Regex.compile()
	if err != nil {
		return processor.FilterConfig{}, err
	}
	return processor.FilterConfig{
		Resolution:       f.Resolution,
		Quality:          f.Quality,
		Encode:           f.Encode,
		StreamType:       f.StreamType,
		VisualTag:        f.VisualTag,
		AudioTag:         f.AudioTag,
		AudioChannel:     f.AudioChannel,
		Language:         f.Language,
		SizeByResolution: f.SizeByResolution,
		SeederFloor:      f.SeederFloor,
		AgeCeilingHours:  f.AgeCeilingHours,
		Regex:            regex,
	}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// AutoplayConfig is the "autoPlay{method, attributes[]}" option (spec.md
// §6); method and the attribute vocabulary are opaque strings the client
// app interprets, matching how §1 scopes "rendering of display strings"
// out of this module.
type AutoplayConfig struct {
	Method     string   `json:"method,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

// FormatterConfig is the "formatter{id|custom}" option: only the input
// contract is specified (spec.md §1), so this module stores the choice
// without interpreting it — ParsedStream.Describe() is the actual input
// contract a real formatter would consume.
type FormatterConfig struct {
	ID     string `json:"id,omitempty"`
	Custom string `json:"custom,omitempty"`
}

// UserConfig is one user's ordered processing configuration (spec.md §6
// "Per user").
type UserConfig struct {
	ID           string               `json:"id"`
	AddonPresets []AddonPresetConfig  `json:"addonPresets,omitempty"`
	Filters      FilterSettings       `json:"filters"`
	Sort         []processor.SortRule `json:"sort,omitempty"`
	DedupePolicy processor.DedupePolicy `json:"dedupePolicy,omitempty"`
	Autoplay     AutoplayConfig       `json:"autoplay,omitempty"`
	Formatter    FormatterConfig      `json:"formatter,omitempty"`
}

// ProcessorConfig builds the processor.Config this user's request
// pipeline should run with.
func (u UserConfig) ProcessorConfig() (processor.Config, error) {
	filter, err := u.Filters.Resolve()
	if err != nil {
		return processor.Config{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return processor.Config{
		Filter:   filter,
		Sort:     u.Sort,
		Dedupe:   u.DedupePolicy,
		Autoplay: u.Autoplay.Method != "",
	}, nil
}

// ServerSettings is the HTTP listen address for the thin inbound surface
// spec.md §6 enumerates (manifest/stream/catalog/meta).
type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// MetadataSettings configures the TMDB-backed SearchMetadata lookup
// (spec.md §4.9 step 1).
type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey,omitempty"`
	Language   string `json:"language,omitempty"`
}

// CacheSettings selects the on-disk cache directory (spec.md §6: "only
// the on-disk cache backend, if used, is written to").
type CacheSettings struct {
	Directory string `json:"directory"`
}

// LogSettings is the ambient logging configuration, unchanged in shape
// from the teacher's own LogConfig — rotation via lumberjack, same
// fields, regardless of anything spec.md scopes out of the domain.
type LogSettings struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// Settings is the full on-disk configuration document. Addon presets are
// selected per user (spec.md §6's "per addon preset" shape is the entry
// type; in practice each user picks their own addon instances, the way
// AIOStreams itself scopes addon configuration to a user's manifest URL).
type Settings struct {
	Global         GlobalSettings        `json:"global"`
	Server         ServerSettings        `json:"server"`
	Metadata       MetadataSettings      `json:"metadata"`
	Cache          CacheSettings         `json:"cache"`
	DebridServices []DebridServiceConfig `json:"debridServices"`
	PresetCatalogPath string             `json:"presetCatalogPath,omitempty"`
	Users          []UserConfig          `json:"users"`
	Log            LogSettings           `json:"log"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:            ServerSettings{Host: "0.0.0.0", Port: 11470},
		Metadata:          MetadataSettings{Language: "en-US"},
		Cache:             CacheSettings{Directory: "cache"},
		PresetCatalogPath: "config/presets.yaml",
		Global: GlobalSettings{
			DefaultTimeoutSeconds:              15,
			MaxTimeoutSeconds:                  60,
			MinTimeoutSeconds:                  1,
			LibraryPageSize:                    100,
			LibraryPageLimit:                   2000,
			LibraryCacheTTLSeconds:             24 * 3600,
			LibraryStaleThresholdSeconds:       3600,
			PlaybackLinkValiditySeconds:        4 * 3600,
			InstantAvailabilityCacheTTLSeconds: 300,
			SearchCacheTTLSeconds:              300,
			UseTorrentDownloadURL:              false,
		},
		DebridServices: []DebridServiceConfig{},
		Users:          []UserConfig{},
		Log: LogSettings{
			File:       "cache/logs/aiostreams.log",
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// AddonClients expands this preset entry against the given catalog entry
// into concrete addon.Client values, applying the services/mediaTypes/
// sources scoping spec.md §6 enumerates.
func (p AddonPresetConfig) AddonClients(catalog addon.Preset) []addon.Client {
	instances := p.instances()
	if catalog.OptionTemplate != "" {
		for i := range instances {
			if instances[i].Options != "" {
				instances[i].Options = strings.ReplaceAll(catalog.OptionTemplate, "{{option}}", instances[i].Options)
			}
		}
	}
	clients := addon.Expand(catalog, instances)
	if len(p.MediaTypes) == 0 && len(p.Sources) == 0 {
		return clients
	}
	scoped := make([]addon.Client, len(clients))
	for i, c := range clients {
		scoped[i] = addon.NewScopedClient(c, p.MediaTypes, p.Sources)
	}
	return scoped
}

// Manager loads and persists Settings to a JSON file through an afero.Fs,
// the same pattern the teacher's config.Manager uses, so both the
// settings file and the on-disk cache backend can run against an
// in-memory filesystem in tests (spec.md §6 "no filesystem writes during
// request handling; only the on-disk cache backend is written to").
type Manager struct {
	fs   afero.Fs
	path string
}

func NewManager(fs afero.Fs, path string) *Manager {
	return &Manager{fs: fs, path: path}
}

// EnsureDir ensures the settings file's parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return m.fs.MkdirAll(dir, 0o755)
}

// Load reads settings from disk, creating defaults on first run.
// Unknown fields anywhere in the document are rejected rather than
// silently ignored, per spec.md §9's design note on dynamic option bags.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config: path not set")
	}
	if _, err := m.fs.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := m.fs.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config: path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := m.fs.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = m.fs.Remove(tmp)
		return err
	}
	return m.fs.Rename(tmp, m.path)
}

// Validate rejects configuration that would otherwise fail silently at
// request time: duplicate ids, timeout bounds that don't order, and
// regex patterns that don't compile.
func (s Settings) Validate() error {
	if s.Global.MinTimeoutSeconds > 0 && s.Global.MaxTimeoutSeconds > 0 && s.Global.MinTimeoutSeconds > s.Global.MaxTimeoutSeconds {
		return errors.New("config: global.minTimeoutSeconds exceeds global.maxTimeoutSeconds")
	}

	seenServices := map[string]bool{}
	for _, svc := range s.DebridServices {
		if strings.TrimSpace(svc.ID) == "" {
			return errors.New("config: debrid service missing id")
		}
		if seenServices[svc.ID] {
			return fmt.Errorf("config: duplicate debrid service id %q", svc.ID)
		}
		seenServices[svc.ID] = true
	}

	seenUsers := map[string]bool{}
	for _, user := range s.Users {
		if strings.TrimSpace(user.ID) == "" {
			return errors.New("config: user missing id")
		}
		if seenUsers[user.ID] {
			return fmt.Errorf("config: duplicate user id %q", user.ID)
		}
		seenUsers[user.ID] = true
		if _, err := user.Filters.Regex.compile(); err != nil {
			return fmt.Errorf("config: user %s: %w", user.ID, err)
		}
		for _, preset := range user.AddonPresets {
			if strings.TrimSpace(preset.PresetID) == "" {
				return fmt.Errorf("config: user %s has an addon preset missing presetId", user.ID)
			}
			for _, svc := range preset.Services {
				if !seenServices[svc] {
					return fmt.Errorf("config: user %s addon preset %q references unknown debrid service %q", user.ID, preset.PresetID, svc)
				}
			}
		}
	}
	return nil
}
