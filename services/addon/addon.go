// Package addon implements AddonClient (C8): a capability-polymorphic
// client over Stremio-protocol addons, constructed from a preset plus a
// user's credential/config slice, per spec.md §4.8.
package addon

import (
	"context"

	"aiostreams/models"
)

// Capability is one addon-protocol surface a preset may declare support for.
type Capability string

const (
	CapabilityManifest Capability = "manifest"
	CapabilityStreams  Capability = "streams"
	CapabilityCatalog  Capability = "catalog"
	CapabilityMeta     Capability = "meta"
	CapabilitySubtitle Capability = "subtitle"
)

// StreamsResult is getStreams's never-throws return shape: successful
// streams and any per-call errors (timeouts, upstream failures) in
// separate fields; a result may carry either one or both.
type StreamsResult struct {
	Streams []models.UnprocessedResult
	Errors  []models.AddonError
}

// Client is one configured addon instance.
type Client interface {
	Name() string
	ID() string
	Capabilities() []Capability
	GetStreams(ctx context.Context, mediaType string, id string) StreamsResult
}

func hasCapability(caps []Capability, want Capability) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
