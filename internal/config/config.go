// Package config provides environment-driven configuration for the explorer.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	AdminToken  Secret
	DBMaxConns  int
	Port        string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	GroupingTimeZone   string
	GroupingLocation   *time.Location
	FootprintSRID      int
	FootprintTolerance float64
	RegionTolerance    float64
	OverlapMargin      time.Duration
	CacheTTL           time.Duration
	SampleSize         int
	CRSInferenceCodes  []int
	PathRowShapefiles  []string
	ProductConfigFile  string
	RefreshWorkers     int
	RefreshQueueSize   int

	OTLPEndpoint     string
	TraceSampleRatio float64
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory (or EXPLORER_ENV_FILE) is loaded first
// without overriding variables that are already set.
func Load() (*Config, error) {
	if err := loadEnvFile(envOrDefault("EXPLORER_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:       Secret(envOrDefault("DATABASE_URL", "")),
		AdminToken:        Secret(envOrDefault("EXPLORER_ADMIN_TOKEN", "")),
		Port:              envOrDefault("PORT", "8080"),
		ListenHost:        envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "text"),
		GroupingTimeZone:  envOrDefault("EXPLORER_GROUPING_TIME_ZONE", "Australia/Darwin"),
		ProductConfigFile: envOrDefault("EXPLORER_PRODUCT_CONFIG", ""),
		OTLPEndpoint:      envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		CORSOrigins:       splitList(envOrDefault("CORS_ORIGINS", "http://localhost:3000")),
		PathRowShapefiles: splitList(envOrDefault("EXPLORER_PATH_ROW_SHAPEFILES", "")),
	}

	if err := cfg.loadNumbers(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadNumbers() error {
	var err error

	if c.DBMaxConns, err = envInt("DB_MAX_CONNS", 8); err != nil {
		return err
	}

	if c.FootprintSRID, err = envInt("EXPLORER_FOOTPRINT_SRID", 3577); err != nil {
		return err
	}

	if c.SampleSize, err = envInt("EXPLORER_SAMPLE_SIZE", 1000); err != nil {
		return err
	}

	if c.RefreshWorkers, err = envInt("EXPLORER_REFRESH_WORKERS", 1); err != nil {
		return err
	}

	if c.RefreshQueueSize, err = envInt("EXPLORER_REFRESH_QUEUE_SIZE", 100); err != nil {
		return err
	}

	if c.FootprintTolerance, err = envFloat("EXPLORER_FOOTPRINT_TOLERANCE", 1000); err != nil {
		return err
	}

	if c.RegionTolerance, err = envFloat("EXPLORER_REGION_TOLERANCE", 0.0001); err != nil {
		return err
	}

	if c.TraceSampleRatio, err = envFloat("OTEL_SAMPLER_RATIO", 0.1); err != nil {
		return err
	}

	if c.OverlapMargin, err = envDuration("EXPLORER_OVERLAP_MARGIN", 15*time.Minute); err != nil {
		return err
	}

	if c.CacheTTL, err = envDuration("EXPLORER_CACHE_TTL", 90*time.Second); err != nil {
		return err
	}

	for _, s := range splitList(envOrDefault("EXPLORER_CRS_INFERENCE_CODES", "4283,4326")) {
		code, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("EXPLORER_CRS_INFERENCE_CODES must be a list of EPSG integers, got %q", s)
		}

		c.CRSInferenceCodes = append(c.CRSInferenceCodes, code)
	}

	return nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}

	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}

	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 15m, got %q", key, v)
	}

	return d, nil
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
