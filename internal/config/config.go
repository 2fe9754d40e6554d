// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads tvbroker configuration from the environment.
// Precedence is ENV > defaults; there is intentionally no config file for
// the broker core, only for the provider manifest (see internal/discovery).
package config

import (
	"fmt"
	"strings"
	"time"
)

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	// Logging
	LogLevel   string
	LogService string
	Version    string

	// Data
	DataDir      string
	ManifestPath string

	// Broker behaviour
	OpTimeout       time.Duration // pending-operation timeout (original: 2500ms)
	DispatchQueue   int           // per-client event queue depth
	DefaultUserID   int
	WatchLogEnabled bool

	// Admin API
	APIToken       string
	AllowedOrigins []string

	// Metrics
	MetricsEnabled bool
	MetricsAddr    string
}

// ServerConfig holds HTTP server settings for the admin API.
type ServerConfig struct {
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	RateLimitEnabled bool
	RateLimitRPS     int

	TracingService string // empty disables tracing middleware
}

// Load resolves AppConfig from the environment.
func Load(version string) (AppConfig, error) {
	cfg := AppConfig{
		LogLevel:        ParseString("TVBROKER_LOG_LEVEL", "info"),
		LogService:      ParseString("TVBROKER_LOG_SERVICE", "tvbroker"),
		Version:         version,
		DataDir:         ParseString("TVBROKER_DATA", "/var/lib/tvbroker"),
		OpTimeout:       ParseDuration("TVBROKER_OP_TIMEOUT", 2500*time.Millisecond),
		DispatchQueue:   ParseInt("TVBROKER_DISPATCH_QUEUE", 64),
		DefaultUserID:   ParseInt("TVBROKER_DEFAULT_USER", 0),
		WatchLogEnabled: ParseBool("TVBROKER_WATCHLOG", true),
		APIToken:        ParseString("TVBROKER_API_TOKEN", ""),
		MetricsEnabled:  ParseBool("TVBROKER_METRICS", true),
		MetricsAddr:     ParseString("TVBROKER_METRICS_ADDR", ":9090"),
	}
	cfg.ManifestPath = ParseString("TVBROKER_PROVIDERS", cfg.DataDir+"/providers.yaml")
	if origins := ParseString("TVBROKER_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}

	if cfg.OpTimeout <= 0 {
		return AppConfig{}, fmt.Errorf("TVBROKER_OP_TIMEOUT must be positive, got %s", cfg.OpTimeout)
	}
	if cfg.DispatchQueue <= 0 {
		return AppConfig{}, fmt.Errorf("TVBROKER_DISPATCH_QUEUE must be positive, got %d", cfg.DispatchQueue)
	}
	return cfg, nil
}

// ParseServerConfig resolves ServerConfig from the environment.
func ParseServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:        ParseString("TVBROKER_LISTEN", ":8080"),
		ReadHeaderTimeout: ParseDuration("TVBROKER_READ_HEADER_TIMEOUT", 5*time.Second),
		ShutdownTimeout:   ParseDuration("TVBROKER_SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimitEnabled:  ParseBool("TVBROKER_RATE_LIMIT", true),
		RateLimitRPS:      ParseInt("TVBROKER_RATE_LIMIT_RPS", 50),
		TracingService:    ParseString("TVBROKER_TRACING_SERVICE", ""),
	}
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
