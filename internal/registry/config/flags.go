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
//	-a string   text protocol bind address (e.g., "0.0.0.0:9000")
//	-g string   gRPC health bind address, "" disables it
//	-t int      peer timeout, seconds
//	-w int      sweep interval, seconds
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-t", "-w"})

	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.StringVar(&config.HealthAddr, "g", config.HealthAddr, "gRPC health endpoint address")

	peerTimeout := fs.Int("t", int(config.PeerTimeout.Seconds()), "peer timeout (in seconds)")
	sweepInterval := fs.Int("w", int(config.SweepInterval.Seconds()), "eviction sweep interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if *peerTimeout <= 0 || *sweepInterval <= 0 {
		return fmt.Errorf("parse flags: intervals must be positive")
	}
	config.PeerTimeout = time.Duration(*peerTimeout) * time.Second
	config.SweepInterval = time.Duration(*sweepInterval) * time.Second
	return nil
}
