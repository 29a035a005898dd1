// Package debrid implements DebridClient (C5): a provider-polymorphic
// abstraction over debrid services, covering the TorrentCapable and
// UsenetCapable capability sets spec.md §4.5 describes, instant-availability
// batching, and library-cache refresh.
package debrid

import (
	"context"
	"fmt"
	"time"

	"aiostreams/models"
)

// FailureKind classifies a provider call failure into the taxonomy
// spec.md §4.5 requires callers to branch on, independent of the
// upstream's own error vocabulary.
type FailureKind string

const (
	FailureUnauthorized       FailureKind = "UNAUTHORIZED"
	FailureStoreLimitExceeded FailureKind = "STORE_LIMIT_EXCEEDED"
	FailureTooManyRequests    FailureKind = "TOO_MANY_REQUESTS"
	FailureNotFound           FailureKind = "NOT_FOUND"
	FailureNoMatchingFile     FailureKind = "NO_MATCHING_FILE"
	FailureNotImplemented     FailureKind = "NOT_IMPLEMENTED"
	FailureUnknown            FailureKind = "UNKNOWN"
)

// ProviderError wraps an upstream failure with its classified kind.
type ProviderError struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the caller should back off and retry, rather
// than surface the failure.
func (e *ProviderError) Retryable() bool { return e.Kind == FailureTooManyRequests }

// Provider is the common identity every debrid backend exposes. Capability
// is discovered by asserting against TorrentCapable and/or UsenetCapable —
// a provider may implement one or both, per spec.md §4.5.
type Provider interface {
	Name() string
}

// CachedStatus is the result of an instant-availability probe for a
// single hash.
type CachedStatus struct {
	Hash    string
	Cached  bool
	Size    int64
	Files   []models.DebridFile
	Library bool // set when cross-referenced against the library snapshot
}

// TorrentCapable is implemented by providers that manage magnets/torrents.
type TorrentCapable interface {
	Provider
	ListMagnets(ctx context.Context) ([]models.DebridDownload, error)
	GetMagnet(ctx context.Context, id string) (models.DebridDownload, error)
	RemoveMagnet(ctx context.Context, id string) error
	AddMagnet(ctx context.Context, magnetOrHash string) (models.DebridDownload, error)
	AddTorrent(ctx context.Context, torrentFile []byte) (models.DebridDownload, error)
	CheckMagnets(ctx context.Context, hashes []string, checkOwned bool) (map[string]CachedStatus, error)
	GenerateTorrentLink(ctx context.Context, download models.DebridDownload, fileIndex int) (string, error)
	RefreshLibraryCache(ctx context.Context) error
}

// UsenetCapable is implemented by providers that manage NZBs.
type UsenetCapable interface {
	Provider
	ListNzbs(ctx context.Context) ([]models.DebridDownload, error)
	GetNzb(ctx context.Context, id string) (models.DebridDownload, error)
	RemoveNzb(ctx context.Context, id string) error
	AddNzb(ctx context.Context, nzbURL string, nzbData []byte) (models.DebridDownload, error)
	CheckNzbs(ctx context.Context, hashes []string) (map[string]CachedStatus, error)
	GenerateUsenetLink(ctx context.Context, download models.DebridDownload, fileIndex int) (string, error)
	RefreshLibraryCache(ctx context.Context) error
}

// Factory builds a Provider from a per-user credential.
type Factory func(credential string) Provider

var registry = map[string]Factory{}

// RegisterProvider makes a named provider buildable via New. Providers call
// this from an init() the way the teacher's AllDebrid client does.
func RegisterProvider(name string, factory Factory) {
	registry[name] = factory
}

// New constructs a registered provider by name.
func New(name, credential string) (Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("debrid: provider %q is not registered", name)
	}
	return factory(credential), nil
}

// Registered lists every provider name currently registered.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// defaultRequestTimeout bounds a single upstream call when the caller's
// context carries no deadline of its own.
const defaultRequestTimeout = 30 * time.Second
