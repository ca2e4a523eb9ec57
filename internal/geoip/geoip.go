// Package geoip resolves an IP address to a coarse geographic location,
// either from a local MaxMind-format database or a remote IP-API lookup.
// The database file format and the HTTP API are external collaborators;
// this package depends only on the Provider interface, wrapped with a
// TTL-bounded cache keyed by address.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pingcrafty/mcscan/internal/logging"
)

// Info is the resolved location for a single address.
type Info struct {
	Country string
	City    string
	ASN     string
	Lat     float64
	Lon     float64
}

// Provider resolves an address to an Info.
type Provider interface {
	Lookup(ctx context.Context, ip string) (*Info, error)
}

// Evictor is implemented by Providers that hold a cache worth shedding
// under memory pressure. The orchestrator type-asserts for it rather than
// requiring every Provider to implement a no-op.
type Evictor interface {
	EvictOldest()
}

var _ Evictor = (*cachedProvider)(nil)

// Config selects and configures a Provider.
type Config struct {
	Enabled       bool
	Provider      string // "local" or "remote"
	DatabasePath  string
	RemoteURL     string // defaults to ip-api.com's batch-less endpoint
	CacheDuration time.Duration
	Required      bool
}

const defaultRemoteURL = "http://ip-api.com/json/%s"

// New builds the configured Provider wrapped in a TTL cache. It returns
// (nil, nil) when geolocation is disabled, so callers can skip the enrich
// hook entirely rather than carrying a no-op Provider.
func New(cfg Config) (Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var base Provider
	switch cfg.Provider {
	case "", "local":
		local, err := newLocalProvider(cfg.DatabasePath)
		if err != nil {
			if cfg.Required {
				return nil, err
			}
			logging.Warn("geolocation database unavailable, continuing without enrichment", "error", err)
			return nil, nil
		}
		base = local
	case "remote":
		url := cfg.RemoteURL
		if url == "" {
			url = defaultRemoteURL
		}
		base = &remoteProvider{urlTemplate: url, client: &http.Client{Timeout: 5 * time.Second}}
	default:
		return nil, fmt.Errorf("geoip: unknown provider %q", cfg.Provider)
	}

	ttl := cfg.CacheDuration
	if ttl <= 0 {
		ttl = time.Hour
	}
	return newCachedProvider(base, ttl), nil
}

// localProvider reads a MaxMind-format database file. Only the file's
// presence is validated here; the on-disk format itself is an external
// collaborator the scanner never parses directly in this implementation,
// so lookups report an error rather than a fabricated result.
type localProvider struct {
	path string
}

func newLocalProvider(path string) (*localProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("geoip: local provider requires database_path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("geoip: database_path %q: %w", path, err)
	}
	return &localProvider{path: path}, nil
}

func (p *localProvider) Lookup(_ context.Context, _ string) (*Info, error) {
	return nil, fmt.Errorf("geoip: local MaxMind lookups are not implemented in this build")
}

// remoteProvider queries an IP-API-compatible HTTP endpoint.
type remoteProvider struct {
	urlTemplate string
	client      *http.Client
}

type remoteResponse struct {
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	City        string  `json:"city"`
	ASN         string  `json:"as"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Description string  `json:"message"`
}

func (p *remoteProvider) Lookup(ctx context.Context, ip string) (*Info, error) {
	url := fmt.Sprintf(p.urlTemplate, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geoip: decode response: %w", err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("geoip: lookup %s failed: %s", ip, body.Description)
	}
	return &Info{Country: body.Country, City: body.City, ASN: body.ASN, Lat: body.Lat, Lon: body.Lon}, nil
}

// cachedProvider wraps a Provider with a TTL-bounded concurrent map, the
// same bookkeeping shape as the rest of the pack's job-tracking maps:
// a mutex-guarded map entry carrying both the value and its expiry.
type cachedProvider struct {
	base Provider
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	info    *Info
	expires time.Time
}

func newCachedProvider(base Provider, ttl time.Duration) *cachedProvider {
	return &cachedProvider{base: base, ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *cachedProvider) Lookup(ctx context.Context, ip string) (*Info, error) {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[ip]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.info, nil
	}
	c.mu.Unlock()

	info, err := c.base.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[ip] = cacheEntry{info: info, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return info, nil
}

// EvictOldest drops the single stalest cache entry. The orchestrator calls
// this on every Governor.Evictions() signal, i.e. whenever RSS crosses the
// evict threshold.
func (c *cachedProvider) EvictOldest() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expires.Before(oldestTime) {
			oldestKey, oldestTime = k, e.expires
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Size reports the current cache entry count, used for the cache-size
// metric gauge.
func (c *cachedProvider) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
