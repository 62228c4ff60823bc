package registry

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/dmitrijs2005/peershare/internal/registry/config"
	"github.com/stretchr/testify/assert"
)

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:     "127.0.0.1:0",
		HealthAddr:     "127.0.0.1:0",
		PeerTimeout:    90 * time.Second,
		SweepInterval:  time.Second,
		ReadBufferSize: 1024,
		LogLevel:       "info",
	}
}

func TestApp_RunAndStop(t *testing.T) {
	cfg := testConfig()
	app := NewApp(cfg, logging.Nop{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
