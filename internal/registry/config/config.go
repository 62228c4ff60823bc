// Package config handles configuration for the registry process,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the registry.
//
// Fields:
//   - ListenAddr: TCP bind address of the text protocol.
//   - HealthAddr: bind address of the gRPC health endpoint; empty disables it.
//   - PeerTimeout: a record not refreshed for longer than this is evicted.
//   - SweepInterval: period of the background eviction sweep.
//   - ReadBufferSize: maximum size of a single request message.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ListenAddr     string
	HealthAddr     string
	PeerTimeout    time.Duration
	SweepInterval  time.Duration
	ReadBufferSize int
	LogLevel       string
}

// LoadDefaults populates Config with the standard registry settings.
func (c *Config) LoadDefaults() {
	c.ListenAddr = "0.0.0.0:9000"
	c.HealthAddr = "127.0.0.1:9001"
	c.PeerTimeout = 90 * time.Second
	c.SweepInterval = 10 * time.Second
	c.ReadBufferSize = 1024
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file (-c/-config) and finally from command-line
// flags. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
