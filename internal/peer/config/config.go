// Package config handles configuration for the peer process: defaults,
// an optional JSON overlay and command-line flags.
package config

import "time"

// Config holds runtime settings for a peer.
//
// Fields:
//   - RegistryAddr: host:port of the registry text protocol.
//   - RegistryHealthAddr: host:port of the registry gRPC health endpoint.
//   - ListenIP / ListenPort: the listener address advertised to the registry
//     and to other peers.
//   - HeartbeatInterval: how often REGISTER is re-sent.
//   - SessionTimeout: idle time after which the peer shuts down.
//   - SessionCheckInterval: how often the session is checked for expiry.
//   - OnlineCheckInterval: how often registry reachability is probed.
//   - BufferSize: read size for control messages and copy buffer for files.
//   - DataDir: root of users, keys, manifest, shared/ and downloads/.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	RegistryAddr         string
	RegistryHealthAddr   string
	ListenIP             string
	ListenPort           int
	HeartbeatInterval    time.Duration
	SessionTimeout       time.Duration
	SessionCheckInterval time.Duration
	OnlineCheckInterval  time.Duration
	BufferSize           int
	DataDir              string
	LogLevel             string
}

// LoadDefaults populates c with the standard peer settings.
func (c *Config) LoadDefaults() {
	c.RegistryAddr = "127.0.0.1:9000"
	c.RegistryHealthAddr = "127.0.0.1:9001"
	c.ListenIP = "127.0.0.1"
	c.ListenPort = 10000
	c.HeartbeatInterval = 30 * time.Second
	c.SessionTimeout = 600 * time.Second
	c.SessionCheckInterval = 5 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.BufferSize = 4096
	c.DataDir = "."
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then JSON (-c/-config), then flags. Later
// sources take precedence. args excludes the program name.
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
