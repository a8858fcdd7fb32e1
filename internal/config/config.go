// Package config handles YAML configuration loading with environment
// variable expansion, for the reference host (internal/hostabi/localhost)
// and the dev harness (cmd/saru-dev). The guest-visible runtime core never
// reads this package directly; it only sees the Host interface.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level dev-harness configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Backends     []BackendEntry     `yaml:"backends"`
	DefaultBackend string           `yaml:"default_backend"`
	Dictionaries []DictionaryEntry  `yaml:"dictionaries"`
	Secrets      []SecretEntry      `yaml:"secrets"`
	LogEndpoints []LogEndpointEntry `yaml:"log_endpoints"`
	Geo          GeoConfig          `yaml:"geo"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// ServerConfig holds the dev harness's HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds the reference host's SQLite settings (dictionary and
// cache persistence).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// BackendEntry is an outbound backend definition, resolved by fetch()'s
// explicit-backend-name or fastly.defaultBackend fallback.
type BackendEntry struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base_url"`
	MaxRPS    int    `yaml:"max_rps"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// DictionaryEntry seeds a named Dictionary with key/value pairs.
type DictionaryEntry struct {
	Name    string            `yaml:"name"`
	Entries map[string]string `yaml:"entries"`
}

// SecretEntry seeds the secret store (supplemented feature; see
// internal/wiring/secretstore.go).
type SecretEntry struct {
	Store string `yaml:"store"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// LogEndpointEntry names a log endpoint the guest can open via
// fastly.getLogger.
type LogEndpointEntry struct {
	Name string `yaml:"name"`
}

// GeoConfig points at the reference host's IP-to-geo lookup data.
type GeoConfig struct {
	DatabasePath string `yaml:"database_path"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "saru.db",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
