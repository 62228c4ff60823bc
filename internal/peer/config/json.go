package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/peershare/internal/flagx"
	"github.com/dmitrijs2005/peershare/internal/timex"
)

// JsonConfig is the on-disk shape of the peer config. Intervals accept both
// "30s" style strings and integer nanoseconds.
type JsonConfig struct {
	RegistryAddr         string         `json:"registry_addr"`
	RegistryHealthAddr   *string        `json:"registry_health_addr"`
	ListenIP             string         `json:"listen_ip"`
	ListenPort           int            `json:"listen_port"`
	HeartbeatInterval    timex.Duration `json:"heartbeat_interval"`
	SessionTimeout       timex.Duration `json:"session_timeout"`
	SessionCheckInterval timex.Duration `json:"session_check_interval"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval"`
	BufferSize           int            `json:"buffer_size"`
	DataDir              string         `json:"data_dir"`
	LogLevel             string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config, if any.
// Absent keys keep their current value; registry_health_addr may be ""
// to disable the online watcher.
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

	if c.RegistryAddr != "" {
		config.RegistryAddr = c.RegistryAddr
	}
	if c.RegistryHealthAddr != nil {
		config.RegistryHealthAddr = *c.RegistryHealthAddr
	}
	if c.ListenIP != "" {
		config.ListenIP = c.ListenIP
	}
	if c.ListenPort > 0 {
		config.ListenPort = c.ListenPort
	}
	if c.HeartbeatInterval.Duration > 0 {
		config.HeartbeatInterval = c.HeartbeatInterval.Duration
	}
	if c.SessionTimeout.Duration > 0 {
		config.SessionTimeout = c.SessionTimeout.Duration
	}
	if c.SessionCheckInterval.Duration > 0 {
		config.SessionCheckInterval = c.SessionCheckInterval.Duration
	}
	if c.OnlineCheckInterval.Duration > 0 {
		config.OnlineCheckInterval = c.OnlineCheckInterval.Duration
	}
	if c.BufferSize > 0 {
		config.BufferSize = c.BufferSize
	}
	if c.DataDir != "" {
		config.DataDir = c.DataDir
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	return nil
}
