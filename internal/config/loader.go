package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "RETRACTD_"
)

// LoadWithFile loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (RETRACTD_CACHE_ADDR, RETRACTD_SIMILARITY_TOP_K, etc.)
//  2. YAML config file (~/.config/retractd/config.yaml)
//  3. Hardcoded defaults
//
// The file must live under ~/.config/retractd/ or /etc/retractd/, be at most
// 1MB and carry 0600 or 0400 permissions. A missing file is not an error.
//
// Environment variables map onto YAML keys by dropping the prefix and
// splitting section from field on the first underscore:
//
//	RETRACTD_CACHE_DEFAULT_TTL -> cache.default_ttl
//	RETRACTD_SIMILARITY_TOP_K  -> similarity.top_k
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "retractd", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate via the descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps RETRACTD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "retractd"),
		"/etc/retractd",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/retractd/ or /etc/retractd/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = d.Cache.Backend
	}
	if cfg.Cache.Addr == "" {
		cfg.Cache.Addr = d.Cache.Addr
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = d.Cache.DefaultTTL
	}
	if cfg.Cache.DialTimeout == 0 {
		cfg.Cache.DialTimeout = d.Cache.DialTimeout
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = d.Embeddings.Provider
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = d.Embeddings.Model
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = d.Embeddings.BaseURL
	}
	if cfg.Embeddings.KeyMode == "" {
		cfg.Embeddings.KeyMode = d.Embeddings.KeyMode
	}
	if cfg.Embeddings.PrefixLength == 0 {
		cfg.Embeddings.PrefixLength = d.Embeddings.PrefixLength
	}
	if !cfg.Embeddings.APIKey.IsSet() {
		cfg.Embeddings.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}

	if cfg.Similarity.TopK == 0 {
		cfg.Similarity.TopK = d.Similarity.TopK
	}
	if cfg.Similarity.Threshold == 0 {
		cfg.Similarity.Threshold = d.Similarity.Threshold
	}
	if cfg.Similarity.EntityTopK == 0 {
		cfg.Similarity.EntityTopK = d.Similarity.EntityTopK
	}

	// Weights are all-or-nothing: a partial set would never sum to 1.0.
	w := cfg.Confidence
	if w.FrequencyWeight == 0 && w.ReasoningConsistencyWeight == 0 && w.CitationStrengthWeight == 0 &&
		w.TemporalRelevanceWeight == 0 && w.SourceCredibilityWeight == 0 {
		halfLife := cfg.Confidence.TemporalHalfLifeYears
		cfg.Confidence = d.Confidence
		if halfLife != 0 {
			cfg.Confidence.TemporalHalfLifeYears = halfLife
		}
	}
	if cfg.Confidence.TemporalHalfLifeYears == 0 {
		cfg.Confidence.TemporalHalfLifeYears = d.Confidence.TemporalHalfLifeYears
	}

	if cfg.Cluster.MinSize == 0 {
		cfg.Cluster.MinSize = d.Cluster.MinSize
	}
	if cfg.Cluster.SimilarityThreshold == 0 {
		cfg.Cluster.SimilarityThreshold = d.Cluster.SimilarityThreshold
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = d.Store.Path
	}

	if cfg.Generator.Model == "" {
		cfg.Generator.Model = d.Generator.Model
	}
	if cfg.Generator.RequestsPerMinute == 0 {
		cfg.Generator.RequestsPerMinute = d.Generator.RequestsPerMinute
	}
	if cfg.Generator.Burst == 0 {
		cfg.Generator.Burst = d.Generator.Burst
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = d.Generator.Timeout
	}
	if !cfg.Generator.APIKey.IsSet() {
		cfg.Generator.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = d.Telemetry.Endpoint
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = d.Telemetry.Protocol
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = d.Telemetry.ServiceVersion
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = d.Telemetry.SamplingRate
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = d.Telemetry.ExportInterval
	}
	if cfg.Telemetry.ShutdownTimeout == 0 {
		cfg.Telemetry.ShutdownTimeout = d.Telemetry.ShutdownTimeout
	}
}
