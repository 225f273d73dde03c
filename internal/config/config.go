package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the configuration for the marimo-proxy service itself. The
// per-request marimo settings live in Settings.
type Config struct {
	Port     int
	Token    string // Shared token for the tools API; empty disables auth
	LogLevel string

	// ServicePrefix is the path every route is mounted under (JupyterHub's
	// per-user prefix, "/" when running standalone).
	ServicePrefix string

	// UpstreamPort is the port marimo listens on; 0 picks a free one per spawn.
	UpstreamPort int

	// UpstreamAddr points at an already running marimo. When set nothing is
	// spawned and restarts only forget the address.
	UpstreamAddr string

	// OverridePath points at an optional TOML file decoded into an Override.
	OverridePath string

	// MetricsAddr serves /metrics on a separate listener when set.
	MetricsAddr string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          8888,
		Token:         envOrDefault(EnvToken, os.Getenv(EnvHubToken)),
		LogLevel:      envOrDefault(EnvLogLevel, "info"),
		ServicePrefix: envOrDefault(EnvServicePrefix, "/"),
		UpstreamPort:  envOrDefaultInt(EnvUpstreamPort, 0),
		UpstreamAddr:  os.Getenv(EnvUpstreamAddr),
		OverridePath:  os.Getenv(EnvOverridePath),
		MetricsAddr:   os.Getenv(EnvMetricsAddr),
	}

	if portStr := os.Getenv(EnvPort); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvPort, portStr, err)
		}
		cfg.Port = port
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
