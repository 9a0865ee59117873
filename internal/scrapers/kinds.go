package scrapers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/retry"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Factory builds the launchable scraper kinds over a shared product sink
// and HTTP client.
type Factory struct {
	logger        logger.Logger
	sink          ProductSink
	client        *http.Client
	userAgent     string
	retryConfig   retry.Config
	amazonBaseURL string
	sites         map[string]SiteConfig
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithHTTPClient replaces the default detail-fetch client.
func WithHTTPClient(client *http.Client) FactoryOption {
	return func(f *Factory) { f.client = client }
}

// WithUserAgent overrides the request user agent.
func WithUserAgent(ua string) FactoryOption {
	return func(f *Factory) { f.userAgent = ua }
}

// WithRetryConfig overrides the fetch backoff schedule.
func WithRetryConfig(cfg retry.Config) FactoryOption {
	return func(f *Factory) { f.retryConfig = cfg }
}

// WithAmazonBaseURL points store resolution at a different host.
func WithAmazonBaseURL(base string) FactoryOption {
	return func(f *Factory) { f.amazonBaseURL = base }
}

// WithSites replaces the built-in site table.
func WithSites(sites map[string]SiteConfig) FactoryOption {
	return func(f *Factory) { f.sites = sites }
}

// NewFactory creates a scraper kind factory.
func NewFactory(log logger.Logger, sink ProductSink, opts ...FactoryOption) *Factory {
	cfg := retry.DefaultConfig()
	cfg.IsRetryable = fetchIsRetryable

	f := &Factory{
		logger:        log,
		sink:          sink,
		client:        &http.Client{Timeout: 30 * time.Second},
		userAgent:     defaultUserAgent,
		retryConfig:   cfg,
		amazonBaseURL: defaultAmazonBaseURL,
		sites:         Sites(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Kinds returns every launchable scraper kind for engine registration.
func (f *Factory) Kinds() []engine.Kind {
	kinds := make([]engine.Kind, 0, 2*len(f.sites)+2)
	for _, name := range f.siteNames() {
		kinds = append(kinds, f.urlKind(name), f.detailKind(name))
	}
	kinds = append(kinds, f.amazonKind(), f.fullRunKind())
	return kinds
}

// site resolves a name against the factory's site table.
func (f *Factory) site(name string) (SiteConfig, error) {
	site, ok := f.sites[name]
	if !ok {
		return SiteConfig{}, fmt.Errorf("unknown site %q", name)
	}
	return site, nil
}

// siteNames returns the site table keys in stable order.
func (f *Factory) siteNames() []string {
	names := make([]string, 0, len(f.sites))
	for name := range f.sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
