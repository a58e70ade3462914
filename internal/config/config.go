// Package config provides configuration loading for retractd.
//
// Configuration is loaded from environment variables with sensible defaults,
// optionally layered over a YAML file (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Embedding cache key modes.
const (
	// KeyModeFull hashes the complete text into the embedding cache key.
	KeyModeFull = "full"
	// KeyModePrefix keys embeddings on the first PrefixLength code points only.
	// Distinct texts sharing that prefix collide.
	KeyModePrefix = "prefix"
)

// Config holds the complete retractd configuration.
type Config struct {
	Cache      CacheConfig      `koanf:"cache"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Confidence ConfidenceConfig `koanf:"confidence"`
	Cluster    ClusterConfig    `koanf:"cluster"`
	Store      StoreConfig      `koanf:"store"`
	Generator  GeneratorConfig  `koanf:"generator"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// CacheConfig holds content cache configuration.
type CacheConfig struct {
	Disabled    bool     `koanf:"disabled"`
	Backend     string   `koanf:"backend"` // "redis" or "memory"
	Addr        string   `koanf:"addr"`
	Password    Secret   `koanf:"password"`
	DB          int      `koanf:"db"`
	DefaultTTL  Duration `koanf:"default_ttl"`
	DialTimeout Duration `koanf:"dial_timeout"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	Provider     string `koanf:"provider"` // "fastembed", "tei" or "openai"
	Model        string `koanf:"model"`
	BaseURL      string `koanf:"base_url"`
	APIKey       Secret `koanf:"api_key"`
	CacheDir     string `koanf:"cache_dir"`
	KeyMode      string `koanf:"key_mode"`
	PrefixLength int    `koanf:"prefix_length"`
}

// SimilarityConfig holds similarity search defaults.
type SimilarityConfig struct {
	TopK       int     `koanf:"top_k"`
	Threshold  float64 `koanf:"threshold"`
	EntityTopK int     `koanf:"entity_top_k"`
}

// ConfidenceConfig holds the confidence signal weights.
type ConfidenceConfig struct {
	FrequencyWeight            float64 `koanf:"frequency_weight"`
	ReasoningConsistencyWeight float64 `koanf:"reasoning_consistency_weight"`
	CitationStrengthWeight     float64 `koanf:"citation_strength_weight"`
	TemporalRelevanceWeight    float64 `koanf:"temporal_relevance_weight"`
	SourceCredibilityWeight    float64 `koanf:"source_credibility_weight"`
	TemporalHalfLifeYears      float64 `koanf:"temporal_half_life_years"`
}

// ClusterConfig holds cluster assembly configuration.
type ClusterConfig struct {
	MinSize             int     `koanf:"min_size"`
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
}

// StoreConfig holds document store configuration.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// GeneratorConfig holds reasoning generator configuration.
type GeneratorConfig struct {
	Model             string   `koanf:"model"`
	BaseURL           string   `koanf:"base_url"`
	APIKey            Secret   `koanf:"api_key"`
	RequestsPerMinute float64  `koanf:"requests_per_minute"`
	Burst             int      `koanf:"burst"`
	Timeout           Duration `koanf:"timeout"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OTLP trace and metric export settings.
// Telemetry is off by default; most installs have no collector.
type TelemetryConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	Protocol       string `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure       bool   `koanf:"insecure"`
	TLSSkipVerify  bool   `koanf:"tls_skip_verify"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// SamplingRate is the fraction of root traces kept (0-1).
	SamplingRate    float64  `koanf:"sampling_rate"`
	MetricsEnabled  bool     `koanf:"metrics_enabled"`
	ExportInterval  Duration `koanf:"export_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - RETRACTD_CACHE_DISABLED: Run without a cache (default: false)
//   - RETRACTD_CACHE_BACKEND: redis or memory (default: redis)
//   - RETRACTD_CACHE_ADDR: Redis address (default: localhost:6379)
//   - RETRACTD_CACHE_DEFAULT_TTL: Entry TTL (default: 1h)
//   - RETRACTD_EMBEDDINGS_PROVIDER: fastembed, tei or openai (default: fastembed)
//   - RETRACTD_EMBEDDINGS_MODEL: Model name (default: sentence-transformers/all-MiniLM-L6-v2)
//   - RETRACTD_EMBEDDINGS_KEY_MODE: full or prefix (default: full)
//   - RETRACTD_SIMILARITY_TOP_K: Result limit (default: 10)
//   - RETRACTD_SIMILARITY_THRESHOLD: Minimum score (default: 0.5)
//   - RETRACTD_CLUSTER_MIN_SIZE: Minimum cluster size (default: 3)
//   - RETRACTD_STORE_PATH: SQLite database path
//   - RETRACTD_TELEMETRY_ENABLED: Export traces and metrics over OTLP (default: false)
//   - RETRACTD_TELEMETRY_ENDPOINT: Collector address (default: localhost:4317)
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("cache:", cfg.Cache.Addr)
func Load() *Config {
	d := Default()
	cfg := &Config{
		Cache: CacheConfig{
			Disabled:    getEnvBool("RETRACTD_CACHE_DISABLED", d.Cache.Disabled),
			Backend:     getEnvString("RETRACTD_CACHE_BACKEND", d.Cache.Backend),
			Addr:        getEnvString("RETRACTD_CACHE_ADDR", d.Cache.Addr),
			Password:    Secret(getEnvString("RETRACTD_CACHE_PASSWORD", "")),
			DB:          getEnvInt("RETRACTD_CACHE_DB", d.Cache.DB),
			DefaultTTL:  Duration(getEnvDuration("RETRACTD_CACHE_DEFAULT_TTL", d.Cache.DefaultTTL.Duration())),
			DialTimeout: Duration(getEnvDuration("RETRACTD_CACHE_DIAL_TIMEOUT", d.Cache.DialTimeout.Duration())),
		},
		Embeddings: EmbeddingsConfig{
			Provider:     getEnvString("RETRACTD_EMBEDDINGS_PROVIDER", d.Embeddings.Provider),
			Model:        getEnvString("RETRACTD_EMBEDDINGS_MODEL", d.Embeddings.Model),
			BaseURL:      getEnvString("RETRACTD_EMBEDDINGS_BASE_URL", d.Embeddings.BaseURL),
			APIKey:       Secret(getEnvString("OPENAI_API_KEY", "")),
			CacheDir:     getEnvString("RETRACTD_EMBEDDINGS_CACHE_DIR", d.Embeddings.CacheDir),
			KeyMode:      getEnvString("RETRACTD_EMBEDDINGS_KEY_MODE", d.Embeddings.KeyMode),
			PrefixLength: getEnvInt("RETRACTD_EMBEDDINGS_PREFIX_LENGTH", d.Embeddings.PrefixLength),
		},
		Similarity: SimilarityConfig{
			TopK:       getEnvInt("RETRACTD_SIMILARITY_TOP_K", d.Similarity.TopK),
			Threshold:  getEnvFloat("RETRACTD_SIMILARITY_THRESHOLD", d.Similarity.Threshold),
			EntityTopK: getEnvInt("RETRACTD_SIMILARITY_ENTITY_TOP_K", d.Similarity.EntityTopK),
		},
		Confidence: ConfidenceConfig{
			FrequencyWeight:            getEnvFloat("RETRACTD_CONFIDENCE_FREQUENCY_WEIGHT", d.Confidence.FrequencyWeight),
			ReasoningConsistencyWeight: getEnvFloat("RETRACTD_CONFIDENCE_REASONING_CONSISTENCY_WEIGHT", d.Confidence.ReasoningConsistencyWeight),
			CitationStrengthWeight:     getEnvFloat("RETRACTD_CONFIDENCE_CITATION_STRENGTH_WEIGHT", d.Confidence.CitationStrengthWeight),
			TemporalRelevanceWeight:    getEnvFloat("RETRACTD_CONFIDENCE_TEMPORAL_RELEVANCE_WEIGHT", d.Confidence.TemporalRelevanceWeight),
			SourceCredibilityWeight:    getEnvFloat("RETRACTD_CONFIDENCE_SOURCE_CREDIBILITY_WEIGHT", d.Confidence.SourceCredibilityWeight),
			TemporalHalfLifeYears:      getEnvFloat("RETRACTD_CONFIDENCE_TEMPORAL_HALF_LIFE_YEARS", d.Confidence.TemporalHalfLifeYears),
		},
		Cluster: ClusterConfig{
			MinSize:             getEnvInt("RETRACTD_CLUSTER_MIN_SIZE", d.Cluster.MinSize),
			SimilarityThreshold: getEnvFloat("RETRACTD_CLUSTER_SIMILARITY_THRESHOLD", d.Cluster.SimilarityThreshold),
		},
		Store: StoreConfig{
			Path: getEnvString("RETRACTD_STORE_PATH", d.Store.Path),
		},
		Generator: GeneratorConfig{
			Model:             getEnvString("RETRACTD_GENERATOR_MODEL", d.Generator.Model),
			BaseURL:           getEnvString("RETRACTD_GENERATOR_BASE_URL", d.Generator.BaseURL),
			APIKey:            Secret(getEnvString("OPENAI_API_KEY", "")),
			RequestsPerMinute: getEnvFloat("RETRACTD_GENERATOR_REQUESTS_PER_MINUTE", d.Generator.RequestsPerMinute),
			Burst:             getEnvInt("RETRACTD_GENERATOR_BURST", d.Generator.Burst),
			Timeout:           Duration(getEnvDuration("RETRACTD_GENERATOR_TIMEOUT", d.Generator.Timeout.Duration())),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("RETRACTD_LOGGING_LEVEL", d.Logging.Level),
			Format: getEnvString("RETRACTD_LOGGING_FORMAT", d.Logging.Format),
		},
		Telemetry: TelemetryConfig{
			Enabled:         getEnvBool("RETRACTD_TELEMETRY_ENABLED", d.Telemetry.Enabled),
			Endpoint:        getEnvString("RETRACTD_TELEMETRY_ENDPOINT", d.Telemetry.Endpoint),
			Protocol:        getEnvString("RETRACTD_TELEMETRY_PROTOCOL", d.Telemetry.Protocol),
			Insecure:        getEnvBool("RETRACTD_TELEMETRY_INSECURE", d.Telemetry.Insecure),
			TLSSkipVerify:   getEnvBool("RETRACTD_TELEMETRY_TLS_SKIP_VERIFY", d.Telemetry.TLSSkipVerify),
			ServiceName:     getEnvString("RETRACTD_TELEMETRY_SERVICE_NAME", d.Telemetry.ServiceName),
			ServiceVersion:  getEnvString("RETRACTD_TELEMETRY_SERVICE_VERSION", d.Telemetry.ServiceVersion),
			SamplingRate:    getEnvFloat("RETRACTD_TELEMETRY_SAMPLING_RATE", d.Telemetry.SamplingRate),
			MetricsEnabled:  getEnvBool("RETRACTD_TELEMETRY_METRICS_ENABLED", d.Telemetry.MetricsEnabled),
			ExportInterval:  Duration(getEnvDuration("RETRACTD_TELEMETRY_EXPORT_INTERVAL", d.Telemetry.ExportInterval.Duration())),
			ShutdownTimeout: Duration(getEnvDuration("RETRACTD_TELEMETRY_SHUTDOWN_TIMEOUT", d.Telemetry.ShutdownTimeout.Duration())),
		},
	}
	return cfg
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend:     "redis",
			Addr:        "localhost:6379",
			DefaultTTL:  Duration(time.Hour),
			DialTimeout: Duration(5 * time.Second),
		},
		Embeddings: EmbeddingsConfig{
			Provider:     "fastembed",
			Model:        "sentence-transformers/all-MiniLM-L6-v2",
			BaseURL:      "http://localhost:8080",
			KeyMode:      KeyModeFull,
			PrefixLength: 100,
		},
		Similarity: SimilarityConfig{
			TopK:       10,
			Threshold:  0.5,
			EntityTopK: 5,
		},
		Confidence: ConfidenceConfig{
			FrequencyWeight:            0.30,
			ReasoningConsistencyWeight: 0.25,
			CitationStrengthWeight:     0.20,
			TemporalRelevanceWeight:    0.15,
			SourceCredibilityWeight:    0.10,
			TemporalHalfLifeYears:      5,
		},
		Cluster: ClusterConfig{
			MinSize:             3,
			SimilarityThreshold: 0.8,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Generator: GeneratorConfig{
			Model:             "gpt-4o-mini",
			RequestsPerMinute: 50,
			Burst:             5,
			Timeout:           Duration(60 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			ServiceName:     "retractd",
			ServiceVersion:  "0.1.0",
			SamplingRate:    1.0,
			MetricsEnabled:  true,
			ExportInterval:  Duration(15 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Cache.Disabled {
		switch c.Cache.Backend {
		case "redis":
			if c.Cache.Addr == "" {
				return errors.New("cache addr required for redis backend")
			}
		case "memory":
		default:
			return fmt.Errorf("unknown cache backend %q (must be redis or memory)", c.Cache.Backend)
		}
		if c.Cache.DefaultTTL.Duration() <= 0 {
			return errors.New("cache default TTL must be positive")
		}
	}

	switch c.Embeddings.KeyMode {
	case KeyModeFull:
	case KeyModePrefix:
		if c.Embeddings.PrefixLength <= 0 {
			return fmt.Errorf("embedding prefix length must be positive, got %d", c.Embeddings.PrefixLength)
		}
	default:
		return fmt.Errorf("unknown embedding key mode %q (must be full or prefix)", c.Embeddings.KeyMode)
	}

	if c.Similarity.TopK <= 0 {
		return fmt.Errorf("similarity top_k must be positive, got %d", c.Similarity.TopK)
	}
	if c.Similarity.Threshold < -1 || c.Similarity.Threshold > 1 {
		return fmt.Errorf("similarity threshold must be within [-1, 1], got %g", c.Similarity.Threshold)
	}

	sum := c.Confidence.FrequencyWeight + c.Confidence.ReasoningConsistencyWeight +
		c.Confidence.CitationStrengthWeight + c.Confidence.TemporalRelevanceWeight +
		c.Confidence.SourceCredibilityWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("confidence weights must sum to 1.0, got %g", sum)
	}

	if c.Cluster.MinSize < 1 {
		return fmt.Errorf("cluster min_size must be >= 1, got %d", c.Cluster.MinSize)
	}

	if c.Telemetry.Enabled {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}

// Validate checks telemetry settings. TLS verification may only be skipped
// for collectors on the local machine.
func (t *TelemetryConfig) Validate() error {
	if t.Endpoint == "" {
		return errors.New("endpoint required when enabled")
	}
	switch t.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("unknown protocol %q (must be grpc or http/protobuf)", t.Protocol)
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be within [0, 1], got %g", t.SamplingRate)
	}
	if t.TLSSkipVerify && !isLocalEndpoint(t.Endpoint) {
		return fmt.Errorf("tls_skip_verify is only allowed for local endpoints, got %q", t.Endpoint)
	}
	if t.MetricsEnabled && t.ExportInterval.Duration() <= 0 {
		return errors.New("export_interval must be positive")
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "retractd.db"
	}
	return filepath.Join(home, ".local", "share", "retractd", "retractd.db")
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		var d Duration
		if err := d.UnmarshalText([]byte(value)); err == nil {
			return d.Duration()
		}
	}
	return defaultValue
}
