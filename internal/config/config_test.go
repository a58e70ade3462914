package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every RETRACTD_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, envPrefix) || key == "OPENAI_API_KEY" {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Cache.DefaultTTL.Duration() != time.Hour {
					t.Errorf("Cache.DefaultTTL = %v, want 1h", cfg.Cache.DefaultTTL.Duration())
				}
				if cfg.Cache.Backend != "redis" {
					t.Errorf("Cache.Backend = %q, want redis", cfg.Cache.Backend)
				}
				if cfg.Embeddings.KeyMode != KeyModeFull {
					t.Errorf("Embeddings.KeyMode = %q, want %q", cfg.Embeddings.KeyMode, KeyModeFull)
				}
				if cfg.Similarity.TopK != 10 || cfg.Similarity.Threshold != 0.5 {
					t.Errorf("Similarity = %+v, want top_k 10 threshold 0.5", cfg.Similarity)
				}
				if cfg.Cluster.MinSize != 3 {
					t.Errorf("Cluster.MinSize = %d, want 3", cfg.Cluster.MinSize)
				}
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"RETRACTD_CACHE_BACKEND":        "memory",
				"RETRACTD_CACHE_DEFAULT_TTL":    "10m",
				"RETRACTD_EMBEDDINGS_KEY_MODE":  "prefix",
				"RETRACTD_SIMILARITY_TOP_K":     "3",
				"RETRACTD_SIMILARITY_THRESHOLD": "0.75",
				"OPENAI_API_KEY":                "sk-test",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Cache.Backend != "memory" {
					t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
				}
				if cfg.Cache.DefaultTTL.Duration() != 10*time.Minute {
					t.Errorf("Cache.DefaultTTL = %v, want 10m", cfg.Cache.DefaultTTL.Duration())
				}
				if cfg.Embeddings.KeyMode != KeyModePrefix {
					t.Errorf("Embeddings.KeyMode = %q, want prefix", cfg.Embeddings.KeyMode)
				}
				if cfg.Similarity.TopK != 3 || cfg.Similarity.Threshold != 0.75 {
					t.Errorf("Similarity = %+v", cfg.Similarity)
				}
				if cfg.Generator.APIKey.Value() != "sk-test" {
					t.Error("Generator.APIKey not read from OPENAI_API_KEY")
				}
			},
		},
		{
			name: "invalid numbers fall back to defaults",
			env: map[string]string{
				"RETRACTD_SIMILARITY_TOP_K":  "many",
				"RETRACTD_CACHE_DEFAULT_TTL": "forever",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Similarity.TopK != 10 {
					t.Errorf("Similarity.TopK = %d, want 10", cfg.Similarity.TopK)
				}
				if cfg.Cache.DefaultTTL.Duration() != time.Hour {
					t.Errorf("Cache.DefaultTTL = %v, want 1h", cfg.Cache.DefaultTTL.Duration())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := Load()
			tt.validate(t, cfg)
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: "unknown cache backend",
		},
		{
			name: "disabled cache skips backend checks",
			mutate: func(c *Config) {
				c.Cache.Disabled = true
				c.Cache.Backend = "memcached"
			},
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.Cache.DefaultTTL = 0 },
			wantErr: "TTL must be positive",
		},
		{
			name:    "unknown key mode",
			mutate:  func(c *Config) { c.Embeddings.KeyMode = "first-line" },
			wantErr: "unknown embedding key mode",
		},
		{
			name: "prefix mode needs length",
			mutate: func(c *Config) {
				c.Embeddings.KeyMode = KeyModePrefix
				c.Embeddings.PrefixLength = 0
			},
			wantErr: "prefix length",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Similarity.Threshold = 1.5 },
			wantErr: "threshold",
		},
		{
			name:    "weights do not sum to one",
			mutate:  func(c *Config) { c.Confidence.FrequencyWeight = 0.5 },
			wantErr: "sum to 1.0",
		},
		{
			name:    "min size below one",
			mutate:  func(c *Config) { c.Cluster.MinSize = 0 },
			wantErr: "min_size",
		},
		{
			name: "disabled telemetry is not checked",
			mutate: func(c *Config) {
				c.Telemetry.Protocol = "thrift"
			},
		},
		{
			name: "unknown telemetry protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "thrift"
			},
			wantErr: "unknown protocol",
		},
		{
			name: "sampling rate out of range",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SamplingRate = 2
			},
			wantErr: "sampling_rate",
		},
		{
			name: "skip verify on remote collector",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = "otel.example.com:4317"
				c.Telemetry.TLSSkipVerify = true
			},
			wantErr: "only allowed for local",
		},
		{
			name: "skip verify on local collector",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = "http://127.0.0.1:4318"
				c.Telemetry.TLSSkipVerify = true
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "3600", want: time.Hour},
		{in: "90s", want: 90 * time.Second},
		{in: " 1h30m ", want: 90 * time.Minute},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "-1s", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalText([]byte(tt.in))
		if tt.wantErr {
			if err == nil {
				t.Errorf("UnmarshalText(%q) error = nil, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("UnmarshalText(%q) error = %v", tt.in, err)
			continue
		}
		if d.Duration() != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.in, d.Duration(), tt.want)
		}
	}
}

func TestDuration_String(t *testing.T) {
	if got := Duration(48 * time.Hour).String(); got != "2d" {
		t.Errorf("String() = %q, want 2d", got)
	}
	if got := Duration(25 * time.Hour).String(); got != "25h0m0s" {
		t.Errorf("String() = %q, want 25h0m0s", got)
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")
	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q", s.String())
	}
	if got := fmt.Sprintf("%v %s %#v", s, s, s); strings.Contains(got, "sk-live") {
		t.Errorf("formatting leaked the secret: %s", got)
	}
	b, err := json.Marshal(struct{ Key Secret }{s})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"Key":"[REDACTED]"}` {
		t.Errorf("json.Marshal = %s", b)
	}
	if s.Value() != "sk-live-123" {
		t.Errorf("Value() = %q", s.Value())
	}

	var in Secret
	if err := in.UnmarshalText([]byte("sk-live-123\n")); err != nil {
		t.Fatal(err)
	}
	if in.Value() != "sk-live-123" {
		t.Errorf("UnmarshalText kept whitespace: %q", in.Value())
	}
	if Secret("").String() != "" || Secret("").IsSet() {
		t.Error("empty secret should print empty and be unset")
	}
}
