package config

import (
	"github.com/pingcrafty/mcscan/internal/connworker"
	"github.com/pingcrafty/mcscan/internal/geoip"
	"github.com/pingcrafty/mcscan/internal/orchestrator"
	"github.com/pingcrafty/mcscan/internal/protocol"
	"github.com/pingcrafty/mcscan/internal/ratelimit"
)

const defaultRefreshRate = 1

// BuildOrchestratorConfig maps the scan-engine sections of Config onto an
// orchestrator.Config, the shape every entry point (API, CLI, scheduler)
// hands to orchestrator.New.
func (c *Config) BuildOrchestratorConfig() orchestrator.Config {
	protocolIDs := make([]int32, 0, len(c.Scanner.ProtocolVersions))
	for _, v := range c.Scanner.ProtocolVersions {
		protocolIDs = append(protocolIDs, int32(v))
	}
	if len(protocolIDs) == 0 && !c.Scanner.ScanAllProtocols {
		protocolIDs = []int32{int32(c.Scanner.ProtocolVersion)}
	}

	return orchestrator.Config{
		Pool: connworker.Config{
			Size:            c.Concurrency.MaxConcurrent,
			PerHostPermits:  c.Concurrency.MaxConnectionsPerHost,
			ShutdownTimeout: c.Daemon.ShutdownTimeout,
			EngineConfig: protocol.EngineConfig{
				Timeout:       c.Scanner.Timeout,
				Retries:       c.Scanner.Retries,
				ProtocolIDs:   protocolIDs,
				LegacySupport: c.Scanner.LegacySupport,
			},
		},
		RateLimiter: ratelimit.Config{
			GlobalEventsPerSecond:  float64(c.Scanner.RateLimit),
			GlobalBurst:            c.Scanner.RateLimit,
			PerHostEventsPerSecond: 1,
			PerHostBurst:           2,
		},
		MaxMemoryMB: c.Memory.MaxMemoryMB,

		BlacklistEnabled:    c.Blacklist.Enabled,
		BlacklistPath:       c.Blacklist.FilePath,
		BlacklistRequired:   c.Blacklist.Required,
		BlacklistAutoUpdate: c.Blacklist.AutoUpdate,

		Geolocation: geoip.Config{
			Enabled:       c.Geolocation.Enabled,
			Provider:      c.Geolocation.Provider,
			DatabasePath:  c.Geolocation.DatabasePath,
			RemoteURL:     c.Geolocation.RemoteURL,
			CacheDuration: c.Geolocation.CacheDuration,
			Required:      c.Geolocation.Required,
		},

		NotifyEnabled:       c.Webhook.Enabled,
		NotifyURL:           c.Webhook.URL,
		NotifyBatchSize:     c.Webhook.BatchSize,
		NotifyIncludeStats:  c.Webhook.IncludeStats,
		NotifyFlushInterval: c.Webhook.FlushInterval,

		DiscoveryBatchSize: c.Discovery.BatchSize,
		RefreshRate:        defaultRefreshRate,
		GracePeriod:        c.Daemon.ShutdownTimeout,
	}
}
