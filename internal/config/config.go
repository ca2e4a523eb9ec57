// Package config loads and validates the scanner's on-disk configuration:
// the scan engine sections named by the specification (scanner, discovery,
// concurrency, memory, blacklist, geolocation, webhook, advanced) plus the
// ambient sections needed to run it as a daemon (daemon, database, api,
// logging), following the teacher's file-then-defaults-then-validate shape.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pingcrafty/mcscan/internal/db"
)

// Config is the complete daemon configuration.
type Config struct {
	Daemon      DaemonConfig      `yaml:"daemon" json:"daemon"`
	Database    db.Config         `yaml:"database" json:"database"`
	API         APIConfig         `yaml:"api" json:"api"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Scanner     ScannerConfig     `yaml:"scanner" json:"scanner"`
	Discovery   DiscoveryConfig   `yaml:"discovery" json:"discovery"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" json:"concurrency"`
	Memory      MemoryConfig      `yaml:"memory" json:"memory"`
	Blacklist   BlacklistConfig   `yaml:"blacklist" json:"blacklist"`
	Geolocation GeolocationConfig `yaml:"geolocation" json:"geolocation"`
	Webhook     WebhookConfig     `yaml:"webhook" json:"webhook"`
	Advanced    AdvancedConfig    `yaml:"advanced" json:"advanced"`
}

// DaemonConfig holds daemon-specific settings.
type DaemonConfig struct {
	PIDFile         string        `yaml:"pid_file" json:"pid_file"`
	WorkDir         string        `yaml:"work_dir" json:"work_dir"`
	User            string        `yaml:"user" json:"user"`
	Group           string        `yaml:"group" json:"group"`
	Daemonize       bool          `yaml:"daemonize" json:"daemonize"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// ScannerConfig governs a single probe attempt.
type ScannerConfig struct {
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	ProtocolVersion  int           `yaml:"protocol_version" json:"protocol_version"`
	ScanAllProtocols bool          `yaml:"scan_all_protocols" json:"scan_all_protocols"`
	ProtocolVersions []int         `yaml:"protocol_versions" json:"protocol_versions"`
	Retries          int           `yaml:"retries" json:"retries"`
	LegacySupport    bool          `yaml:"legacy_support" json:"legacy_support"`
	RateLimit        int           `yaml:"rate_limit" json:"rate_limit"`
}

// DiscoveryConfig selects and configures the target source.
type DiscoveryConfig struct {
	Method    string `yaml:"method" json:"method"` // range, file, external
	Ports     []int  `yaml:"ports" json:"ports"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`

	// Range method.
	CIDR string `yaml:"cidr" json:"cidr"`

	// File method.
	Path string `yaml:"path" json:"path"`

	// External method.
	Command []string `yaml:"command" json:"command"`

	// CronExpr, if set, makes the daemon re-run this (necessarily
	// file-method) scan on a robfig/cron/v3 schedule instead of once.
	CronExpr string `yaml:"cron_expr" json:"cron_expr"`
}

// ConcurrencyConfig bounds simultaneous work.
type ConcurrencyConfig struct {
	MaxConcurrent         int `yaml:"max_concurrent" json:"max_concurrent"`
	MaxConnectionsPerHost int `yaml:"max_connections_per_host" json:"max_connections_per_host"`
}

// MemoryConfig bounds process memory and governs pressure response.
type MemoryConfig struct {
	MaxMemoryMB      int           `yaml:"max_memory_mb" json:"max_memory_mb"`
	GCInterval       time.Duration `yaml:"gc_interval" json:"gc_interval"`
	EnableMonitoring bool          `yaml:"enable_monitoring" json:"enable_monitoring"`
}

// BlacklistConfig configures the address exclusion list.
type BlacklistConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	AutoUpdate bool   `yaml:"auto_update" json:"auto_update"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	Required   bool   `yaml:"required" json:"required"`
}

// GeolocationConfig configures the enrich hook's IP lookup provider.
type GeolocationConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Provider      string        `yaml:"provider" json:"provider"` // local, remote
	DatabasePath  string        `yaml:"database_path" json:"database_path"`
	RemoteURL     string        `yaml:"remote_url" json:"remote_url"`
	CacheDuration time.Duration `yaml:"cache_duration" json:"cache_duration"`
	Required      bool          `yaml:"required" json:"required"`
}

// WebhookConfig configures the notify hook.
type WebhookConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	URL           string        `yaml:"url" json:"url"`
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
	IncludeStats  bool          `yaml:"include_stats" json:"include_stats"`
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// AdvancedConfig covers socket- and ordering-level tuning knobs.
type AdvancedConfig struct {
	EnableTCPNoDelay    bool `yaml:"enable_tcp_nodelay" json:"enable_tcp_nodelay"`
	SocketKeepalive     bool `yaml:"socket_keepalive" json:"socket_keepalive"`
	RandomizeScanOrder  bool `yaml:"randomize_scan_order" json:"randomize_scan_order"`
	SkipPrivateRanges   bool `yaml:"skip_private_ranges" json:"skip_private_ranges"`
	SkipReservedRanges  bool `yaml:"skip_reserved_ranges" json:"skip_reserved_ranges"`
}

// APIConfig holds REST/WebSocket server settings.
type APIConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
	Port           int           `yaml:"port" json:"port"`
	TLS            TLSConfig     `yaml:"tls" json:"tls"`
	APIKey         string        `yaml:"api_key" json:"api_key"`
	CORS           CORSConfig    `yaml:"cors" json:"cors"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxRequestSize int64         `yaml:"max_request_size" json:"max_request_size"`
}

// TLSConfig holds TLS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
	CAFile   string `yaml:"ca_file" json:"ca_file"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string         `yaml:"level" json:"level"`
	Format         string         `yaml:"format" json:"format"`
	Output         string         `yaml:"output" json:"output"`
	Rotation       RotationConfig `yaml:"rotation" json:"rotation"`
	Structured     bool           `yaml:"structured" json:"structured"`
	RequestLogging bool           `yaml:"request_logging" json:"request_logging"`
}

// RotationConfig holds log rotation settings.
type RotationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool `yaml:"compress" json:"compress"`
}

// Default returns a configuration with sensible defaults matching the
// documented default values for every scan-engine section.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			PIDFile:         "/var/run/mcscan.pid",
			WorkDir:         "/var/lib/mcscan",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: db.DefaultConfig(),
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			Port:       8080,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
			},
			RequestTimeout: 30 * time.Second,
			MaxRequestSize: 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
			Rotation: RotationConfig{
				MaxSizeMB:  100,
				MaxBackups: 5,
				MaxAgeDays: 30,
				Compress:   true,
			},
			RequestLogging: true,
		},
		Scanner: ScannerConfig{
			Timeout:          3 * time.Second,
			ProtocolVersion:  770,
			Retries:          1,
			LegacySupport:    true,
			RateLimit:        100,
		},
		Discovery: DiscoveryConfig{
			Method:    "range",
			Ports:     []int{25565},
			BatchSize: 256,
		},
		Concurrency: ConcurrencyConfig{
			MaxConcurrent:         200,
			MaxConnectionsPerHost: 1,
		},
		Memory: MemoryConfig{
			MaxMemoryMB:      0,
			GCInterval:       time.Minute,
			EnableMonitoring: true,
		},
		Blacklist: BlacklistConfig{
			Enabled:  true,
			FilePath: "blacklist.conf",
		},
		Geolocation: GeolocationConfig{
			Provider:      "local",
			CacheDuration: time.Hour,
		},
		Webhook: WebhookConfig{
			BatchSize:     50,
			FlushInterval: 5 * time.Second,
		},
		Advanced: AdvancedConfig{
			EnableTCPNoDelay:   true,
			SocketKeepalive:    true,
			SkipPrivateRanges:  true,
			SkipReservedRanges: true,
		},
	}
}

// Load reads configuration from path, falling back to Default() if the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Scanner.Timeout <= 0 {
		return fmt.Errorf("scanner timeout must be positive")
	}
	if c.Scanner.Retries < 0 {
		return fmt.Errorf("scanner retries must be >= 0")
	}
	if c.Scanner.RateLimit <= 0 {
		return fmt.Errorf("scanner rate_limit must be positive")
	}

	validMethods := map[string]bool{"range": true, "file": true, "external": true}
	if !validMethods[c.Discovery.Method] {
		return fmt.Errorf("invalid discovery method: %s", c.Discovery.Method)
	}
	if c.Discovery.BatchSize <= 0 {
		return fmt.Errorf("discovery batch_size must be positive")
	}

	if c.Concurrency.MaxConcurrent <= 0 {
		return fmt.Errorf("concurrency max_concurrent must be positive")
	}
	if c.Concurrency.MaxConnectionsPerHost <= 0 {
		return fmt.Errorf("concurrency max_connections_per_host must be positive")
	}

	if c.Blacklist.Enabled && c.Blacklist.FilePath == "" {
		return fmt.Errorf("blacklist file_path is required when blacklist is enabled")
	}

	if c.Geolocation.Enabled {
		validProviders := map[string]bool{"local": true, "remote": true}
		if !validProviders[c.Geolocation.Provider] {
			return fmt.Errorf("invalid geolocation provider: %s", c.Geolocation.Provider)
		}
	}

	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("webhook url is required when webhook is enabled")
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("API port must be between 1 and 65535")
		}
		if c.API.ListenAddr == "" {
			return fmt.Errorf("API listen address is required when API is enabled")
		}
	}
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" {
			return fmt.Errorf("TLS certificate file is required when TLS is enabled")
		}
		if c.API.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when TLS is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// GetDatabaseConfig returns the database configuration.
func (c *Config) GetDatabaseConfig() db.Config {
	return c.Database
}

// IsDaemonMode returns true if running in daemon mode.
func (c *Config) IsDaemonMode() bool {
	return c.Daemon.Daemonize
}

// GetAPIAddress returns the full API listen address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// IsAPIEnabled returns true if the API server is enabled.
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}

// GetLogOutput returns the log output destination.
func (c *Config) GetLogOutput() string {
	return c.Logging.Output
}
