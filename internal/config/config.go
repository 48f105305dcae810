// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"RICE_SYNTAX_HOST" yaml:"host"`
	Port int    `envconfig:"RICE_SYNTAX_PORT" yaml:"port"`

	Engine         EngineConfig         `yaml:"engine"`
	StructureCache StructureCacheConfig `yaml:"structure_cache"`
	Bus            BusConfig            `yaml:"bus"`
	Worker         WorkerConfig         `yaml:"worker"`
	Log            LogConfig            `yaml:"log"`
	Security       SecurityConfig       `yaml:"security"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// EngineConfig holds parse tree settings.
type EngineConfig struct {
	TreeCacheSize  int `envconfig:"RICE_SYNTAX_TREE_CACHE_SIZE" yaml:"tree_cache_size"`
	ParseTimeoutMS int `envconfig:"RICE_SYNTAX_PARSE_TIMEOUT_MS" yaml:"parse_timeout_ms"` // 0 = none
}

// StructureCacheConfig selects and sizes the outline cache.
type StructureCacheConfig struct {
	Type      string `envconfig:"RICE_SYNTAX_STRUCTURE_CACHE" yaml:"type"`
	Size      int    `envconfig:"RICE_SYNTAX_STRUCTURE_CACHE_SIZE" yaml:"size"`
	TTL       int    `envconfig:"RICE_SYNTAX_STRUCTURE_CACHE_TTL" yaml:"ttl"` // seconds, 0 = no expiry
	RedisURL  string `envconfig:"RICE_SYNTAX_REDIS_URL" yaml:"redis_url"`
	BadgerDir string `envconfig:"RICE_SYNTAX_BADGER_DIR" yaml:"badger_dir"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"RICE_SYNTAX_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"RICE_SYNTAX_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"RICE_SYNTAX_KAFKA_GROUP" yaml:"kafka_group"`
	Topic        string `envconfig:"RICE_SYNTAX_BUS_TOPIC" yaml:"topic"`
	EventLog     string `envconfig:"RICE_SYNTAX_EVENT_LOG" yaml:"event_log"` // empty = disabled
}

// WorkerConfig bounds request dispatch.
type WorkerConfig struct {
	Concurrency      int     `envconfig:"RICE_SYNTAX_WORKER_CONCURRENCY" yaml:"concurrency"`
	RequestTimeoutMS int     `envconfig:"RICE_SYNTAX_REQUEST_TIMEOUT_MS" yaml:"request_timeout_ms"` // 0 = none
	RateLimit        float64 `envconfig:"RICE_SYNTAX_WORKER_RATE_LIMIT" yaml:"rate_limit"`          // req/s, 0 = disabled
	RateBurst        int     `envconfig:"RICE_SYNTAX_WORKER_RATE_BURST" yaml:"rate_burst"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RICE_SYNTAX_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RICE_SYNTAX_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds HTTP surface settings.
type SecurityConfig struct {
	RateLimit   int    `envconfig:"RICE_SYNTAX_RATE_LIMIT" yaml:"rate_limit"` // per client req/s, 0 = disabled
	CORSOrigins string `envconfig:"RICE_SYNTAX_CORS_ORIGINS" yaml:"cors_origins"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `envconfig:"RICE_SYNTAX_METRICS_ENABLED" yaml:"enabled"`
	Path    string `envconfig:"RICE_SYNTAX_METRICS_PATH" yaml:"path"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8090

	cfg.Engine = EngineConfig{
		TreeCacheSize: 5,
	}

	cfg.StructureCache = StructureCacheConfig{
		Type:      "memory",
		Size:      5,
		RedisURL:  "redis://localhost:6379",
		BadgerDir: "./data/structure",
	}

	cfg.Bus = BusConfig{
		Type:       "memory",
		KafkaGroup: "rice-syntax",
		Topic:      "syntax.request",
	}

	cfg.Worker = WorkerConfig{
		Concurrency:      8,
		RequestTimeoutMS: 30000,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		CORSOrigins: "*",
	}

	cfg.Metrics = MetricsConfig{
		Enabled: true,
		Path:    "/metrics",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.Engine.TreeCacheSize < 1 {
		errs = append(errs, "engine.tree_cache_size must be at least 1")
	}
	if c.Engine.ParseTimeoutMS < 0 {
		errs = append(errs, "engine.parse_timeout_ms must not be negative")
	}

	validCacheTypes := map[string]bool{"memory": true, "redis": true, "badger": true, "none": true}
	if !validCacheTypes[c.StructureCache.Type] {
		errs = append(errs, fmt.Sprintf("invalid structure cache type: %s (must be memory, redis, badger, or none)", c.StructureCache.Type))
	}
	if c.StructureCache.Type == "memory" && c.StructureCache.Size < 1 {
		errs = append(errs, "structure_cache.size must be at least 1")
	}
	if c.StructureCache.Type == "badger" && c.StructureCache.BadgerDir == "" {
		errs = append(errs, "structure_cache.badger_dir is required for the badger cache")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}
	if c.Bus.Type == "kafka" && strings.TrimSpace(c.Bus.KafkaBrokers) == "" {
		errs = append(errs, "bus.kafka_brokers is required for the kafka bus")
	}
	if c.Bus.Topic == "" {
		errs = append(errs, "bus.topic must not be empty")
	}

	if c.Worker.Concurrency < 1 {
		errs = append(errs, "worker.concurrency must be at least 1")
	}
	if c.Worker.RequestTimeoutMS < 0 {
		errs = append(errs, "worker.request_timeout_ms must not be negative")
	}
	if c.Worker.RateLimit < 0 {
		errs = append(errs, "worker.rate_limit must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}

// RequestTimeout returns the per-request deadline, zero when disabled.
func (w WorkerConfig) RequestTimeout() time.Duration {
	return time.Duration(w.RequestTimeoutMS) * time.Millisecond
}

// ParseTimeout returns the parser deadline, zero when disabled.
func (e EngineConfig) ParseTimeout() time.Duration {
	return time.Duration(e.ParseTimeoutMS) * time.Millisecond
}

// TTLDuration returns the structure cache TTL, zero when entries never expire.
func (s StructureCacheConfig) TTLDuration() time.Duration {
	return time.Duration(s.TTL) * time.Second
}

// Brokers splits the comma-separated broker list.
func (b BusConfig) Brokers() []string {
	var out []string
	for _, part := range strings.Split(b.KafkaBrokers, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
