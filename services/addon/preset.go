package addon

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Preset is a catalog entry describing one addon family (Torrentio,
// Jackett, a user's own AIOStreams instance, ...). A user's config
// supplies zero or more Instances per preset; Expand turns those into
// concrete Client values.
type Preset struct {
	ID                        string       `yaml:"id"`
	Name                      string       `yaml:"name"`
	BaseURL                   string       `yaml:"baseUrl"`
	Capabilities              []Capability `yaml:"capabilities"`
	SupportsMultipleInstances bool         `yaml:"supportsMultipleInstances"`
	IsP2P                     bool         `yaml:"isP2P"`
	DefaultTimeoutSeconds     int          `yaml:"defaultTimeoutSeconds"`
	OptionTemplate            string       `yaml:"optionTemplate"` // may reference {{option}} placeholders, already rendered by the caller
}

// DefaultTimeout converts DefaultTimeoutSeconds to a time.Duration, the
// same *Seconds-int-plus-accessor pattern config.GlobalSettings uses since
// neither encoding/json nor yaml.v3 parses duration strings like "15s".
func (p Preset) DefaultTimeout() time.Duration {
	return time.Duration(p.DefaultTimeoutSeconds) * time.Second
}

// InstanceConfig is one user-configured instance of a preset.
type InstanceConfig struct {
	PresetID string
	Name     string // overrides Preset.Name when set
	BaseURL  string // overrides Preset.BaseURL when set (self-hosted instances)
	Options  string
	Timeout  time.Duration
	IncludeP2P bool // user opt-in required to surface P2P-only presets (spec.md §4.9 step 2)
}

// LoadPresets parses a YAML preset catalog (one document, a list of
// Preset values), the same declarative shape k8v-streamx's addon package
// builds imperatively via functional options — expressed as data here so
// new presets don't require a code change.
func LoadPresets(r io.Reader) ([]Preset, error) {
	var presets []Preset
	if err := yaml.NewDecoder(r).Decode(&presets); err != nil {
		return nil, fmt.Errorf("decode preset catalog: %w", err)
	}
	return presets, nil
}

// Expand turns one preset plus its configured instances into Client
// values. A preset that declares SupportsMultipleInstances yields one
// client per InstanceConfig; otherwise only the first instance is used.
// A P2P-only preset is dropped unless includeP2P is requested on at
// least one instance, per spec.md §4.9 step 2.
func Expand(preset Preset, instances []InstanceConfig) []Client {
	if preset.IsP2P && !anyIncludesP2P(instances) {
		return nil
	}

	var configured []InstanceConfig
	if preset.SupportsMultipleInstances {
		configured = instances
	} else if len(instances) > 0 {
		configured = instances[:1]
	}

	clients := make([]Client, 0, len(configured))
	for i, inst := range configured {
		clients = append(clients, buildClient(preset, inst, i))
	}
	return clients
}

func anyIncludesP2P(instances []InstanceConfig) bool {
	for _, inst := range instances {
		if inst.IncludeP2P {
			return true
		}
	}
	return false
}

func buildClient(preset Preset, inst InstanceConfig, index int) Client {
	name := preset.Name
	if inst.Name != "" {
		name = inst.Name
	}
	baseURL := preset.BaseURL
	if inst.BaseURL != "" {
		baseURL = inst.BaseURL
	}
	timeout := preset.DefaultTimeout()
	if inst.Timeout > 0 {
		timeout = inst.Timeout
	}
	id := preset.ID
	if preset.SupportsMultipleInstances {
		id = fmt.Sprintf("%s.%d", preset.ID, index)
	}

	return NewStremioClient(StremioConfig{
		Name:    name,
		ID:      id,
		BaseURL: baseURL,
		Options: inst.Options,
		Caps:    preset.Capabilities,
		Timeout: timeout,
	})
}
