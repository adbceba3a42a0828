// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package config loads the service configuration from layered sources:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Search   SearchConfig   `koanf:"search"`
	Bus      BusConfig      `koanf:"bus"`
	Logging  LoggingConfig  `koanf:"logging"`

	// Settings holds the flat item/backend settings keys, e.g.
	// "activity_active" or "searchengine_index". They feed the settings
	// store consumed at item registration.
	Settings map[string]any `koanf:"settings"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig configures the entity read store.
type DatabaseConfig struct {
	// Driver is "duckdb" or "memory". The in-memory store serves tests
	// and demos; production reads an analytics replica of the platform
	// database.
	Driver string `koanf:"driver" validate:"oneof=duckdb memory"`
	Path   string `koanf:"path"`

	MaxOpenConns int `koanf:"max_open_conns"`
}

// SearchConfig configures the search service backing the index.
type SearchConfig struct {
	// Backend is "elasticsearch" or "memory".
	Backend   string   `koanf:"backend" validate:"oneof=elasticsearch memory"`
	Addresses []string `koanf:"addresses"`
	Username  string   `koanf:"username"`
	Password  string   `koanf:"password"`
}

// BusConfig configures the application event bus.
type BusConfig struct {
	// Transport is "inprocess" or "nats".
	Transport string `koanf:"transport" validate:"oneof=inprocess nats"`

	NATS NATSBusConfig `koanf:"nats"`
}

// NATSBusConfig configures the NATS JetStream transport.
type NATSBusConfig struct {
	URL           string        `koanf:"url"`
	QueueGroup    string        `koanf:"queue_group"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	AckWait       time.Duration `koanf:"ack_wait"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8086,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Driver:       "duckdb",
			Path:         "/data/recommender.duckdb",
			MaxOpenConns: 4,
		},
		Search: SearchConfig{
			Backend:   "elasticsearch",
			Addresses: []string{"http://127.0.0.1:9200"},
		},
		Bus: BusConfig{
			Transport: "inprocess",
			NATS: NATSBusConfig{
				URL:           "nats://127.0.0.1:4222",
				QueueGroup:    "recommender",
				MaxReconnects: -1,
				ReconnectWait: 2 * time.Second,
				AckWait:       30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Database.Driver == "duckdb" && c.Database.Path == "" {
		return fmt.Errorf("config: database.path required for the duckdb driver")
	}
	if c.Search.Backend == "elasticsearch" && len(c.Search.Addresses) == 0 {
		return fmt.Errorf("config: search.addresses required for the elasticsearch backend")
	}
	return nil
}
