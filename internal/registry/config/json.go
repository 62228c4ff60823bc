package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/peershare/internal/flagx"
	"github.com/dmitrijs2005/peershare/internal/timex"
)

// JsonConfig is the on-disk shape of the registry config. Intervals accept
// both "90s" style strings and integer nanoseconds.
type JsonConfig struct {
	ListenAddr     string         `json:"listen_addr"`
	HealthAddr     *string        `json:"health_addr"`
	PeerTimeout    timex.Duration `json:"peer_timeout"`
	SweepInterval  timex.Duration `json:"sweep_interval"`
	ReadBufferSize int            `json:"read_buffer_size"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config, if any.
// Absent keys keep their current value; health_addr may be set to "" to
// disable the health endpoint.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if c.ListenAddr != "" {
		config.ListenAddr = c.ListenAddr
	}
	if c.HealthAddr != nil {
		config.HealthAddr = *c.HealthAddr
	}
	if c.PeerTimeout.Duration > 0 {
		config.PeerTimeout = c.PeerTimeout.Duration
	}
	if c.SweepInterval.Duration > 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.ReadBufferSize > 0 {
		config.ReadBufferSize = c.ReadBufferSize
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	return nil
}
