// Copyright (C) 2025, Simweaver Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config reads the bridge's environment knobs. Flags select what
// to run (transport kind, channel); the environment tunes how it runs.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/simweaver/simbridge/transport"
)

// Config holds the environment-tunable settings of a bridge process.
type Config struct {
	// DataPath points at scene asset storage. Empty means the engine runs
	// with synthetic scenes only.
	DataPath string `env:"SIMBRIDGE_DATA"`

	// ShmBuffer is the per-direction slot size of the shared-memory
	// transport, in bytes.
	ShmBuffer int `env:"SIMBRIDGE_SHM_BUFFER" envDefault:"33554432"`

	// ShmTimeout bounds each bounded transport operation.
	ShmTimeout time.Duration `env:"SIMBRIDGE_SHM_TIMEOUT" envDefault:"10s"`

	// ConnectRetries and ConnectBackoff define the client's startup
	// budget while waiting for the server process.
	ConnectRetries int           `env:"SIMBRIDGE_CONNECT_RETRIES" envDefault:"50"`
	ConnectBackoff time.Duration `env:"SIMBRIDGE_CONNECT_BACKOFF" envDefault:"200ms"`
}

// FromEnv parses the configuration from the process environment.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ShmBuffer <= 0 {
		return Config{}, fmt.Errorf("SIMBRIDGE_SHM_BUFFER must be positive, got %d", cfg.ShmBuffer)
	}
	return cfg, nil
}

// TransportConfig projects the environment settings onto a transport
// channel identity.
func (c Config) TransportConfig(channel, addr string) transport.Config {
	return transport.Config{
		Channel:        channel,
		Addr:           addr,
		BufferSize:     c.ShmBuffer,
		Timeout:        c.ShmTimeout,
		ConnectRetries: c.ConnectRetries,
		ConnectBackoff: c.ConnectBackoff,
	}
}
