// Package gateway talks to the external torrent-to-HTTP gateway service.
// Variants share one capability interface and are selected by name at
// construction time.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"stream-resolver/internal/domain"
)

// Service is the capability surface every gateway variant provides: list the
// known torrents, submit a magnet, and template a playable stream URL.
type Service interface {
	// List returns the gateway's current torrent listing.
	List(ctx context.Context) ([]domain.RemoteTorrent, error)
	// Add submits a magnet for asynchronous processing. It returns as soon
	// as submission is acknowledged, not when the content is ready.
	Add(ctx context.Context, magnetURI string) (domain.RemoteTorrent, error)
	// StreamURL templates the playback URL for a hash and file index
	// (link.BlindIndex for no index). No network calls are made.
	StreamURL(hash string, index int) (string, error)
	// Ready reports whether a status counts as streamable under the
	// configured readiness policy.
	Ready(status domain.TorrentStatus) bool
}

// Options configures a gateway variant.
type Options struct {
	// BaseURL is the root of the gateway's HTTP API.
	BaseURL string
	// Credential is either "user:secret" (sent as a Basic auth header) or an
	// opaque API key (sent as an apikey query parameter).
	Credential string
	// DownloadingReady treats still-downloading torrents as streamable. The
	// gateway can serve partially downloaded content by byte range, so this
	// defaults to on; deployments that want fully cached content turn it off.
	DownloadingReady bool

	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Factory builds a gateway variant from options.
type Factory func(Options) Service

var registry = map[string]Factory{}

// Register makes a variant available under the given name.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New constructs the named gateway variant.
func New(name string, opts Options) (Service, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown gateway variant %q", name)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return factory(opts), nil
}
