package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/peershare/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-r string   registry address (e.g., "127.0.0.1:9000")
//	-g string   registry health address, "" disables the online watcher
//	-i string   listen IP advertised to the registry
//	-p int      listen port
//	-d string   data directory
//	-b int      buffer size in bytes
//	-s int      session timeout, seconds
//	-l string   log level
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-r", "-g", "-i", "-p", "-d", "-b", "-s", "-l"})

	fs := flag.NewFlagSet("peer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.RegistryAddr, "r", cfg.RegistryAddr, "registry address")
	fs.StringVar(&cfg.RegistryHealthAddr, "g", cfg.RegistryHealthAddr, "registry health address")
	fs.StringVar(&cfg.ListenIP, "i", cfg.ListenIP, "listen IP")
	fs.IntVar(&cfg.ListenPort, "p", cfg.ListenPort, "listen port")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.IntVar(&cfg.BufferSize, "b", cfg.BufferSize, "buffer size")
	sessionTimeout := fs.Int("s", int(cfg.SessionTimeout.Seconds()), "session timeout (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if cfg.ListenPort < 1 || cfg.ListenPort > 65535 {
		return fmt.Errorf("parse flags: listen port %d out of range", cfg.ListenPort)
	}
	if cfg.BufferSize <= 0 {
		return fmt.Errorf("parse flags: buffer size must be positive")
	}
	if *sessionTimeout <= 0 {
		return fmt.Errorf("parse flags: session timeout must be positive")
	}
	cfg.SessionTimeout = time.Duration(*sessionTimeout) * time.Second
	return nil
}
