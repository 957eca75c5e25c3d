package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateSummaries(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	if c.DBMaxConns < 2 || c.DBMaxConns > 64 {
		return fmt.Errorf("DB_MAX_CONNS must be between 2 and 64")
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	switch c.ListenHost {
	case "127.0.0.1", "::1", "localhost", "0.0.0.0", "::":
	default:
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers, got %q", c.ListenHost)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateSummaries() error {
	loc, err := time.LoadLocation(c.GroupingTimeZone)
	if err != nil {
		return fmt.Errorf("EXPLORER_GROUPING_TIME_ZONE %q is not a known time zone: %w", c.GroupingTimeZone, err)
	}
	c.GroupingLocation = loc

	if c.FootprintSRID <= 0 {
		return fmt.Errorf("EXPLORER_FOOTPRINT_SRID must be a positive SRID")
	}

	if c.FootprintTolerance < 0 || c.RegionTolerance < 0 {
		return fmt.Errorf("simplify tolerances must not be negative")
	}

	if c.OverlapMargin < 0 {
		return fmt.Errorf("EXPLORER_OVERLAP_MARGIN must not be negative")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("EXPLORER_CACHE_TTL must be positive")
	}

	if c.SampleSize < 1 {
		return fmt.Errorf("EXPLORER_SAMPLE_SIZE must be at least 1")
	}

	if c.RefreshWorkers < 1 || c.RefreshWorkers > 16 {
		return fmt.Errorf("EXPLORER_REFRESH_WORKERS must be an integer between 1 and 16")
	}

	if c.RefreshQueueSize < 1 {
		return fmt.Errorf("EXPLORER_REFRESH_QUEUE_SIZE must be at least 1")
	}

	if t := c.AdminToken.Value(); t != "" && len(t) < 16 {
		return fmt.Errorf("EXPLORER_ADMIN_TOKEN must be at least 16 characters")
	}

	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLER_RATIO must be between 0 and 1")
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	return nil
}
