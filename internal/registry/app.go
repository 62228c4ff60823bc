// Package registry implements the rendezvous service: a presence table of
// peer listeners refreshed by heartbeats and evicted on timeout, served over
// a single-shot pipe-delimited TCP protocol.
package registry

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/dmitrijs2005/peershare/internal/registry/config"
)

// App wires the table, the TCP server and the optional health endpoint.
type App struct {
	config *config.Config
	logger logging.Logger
	table  *Table
	server *Server
	health *HealthServer
}

func NewApp(c *config.Config, logger logging.Logger) *App {
	table := NewTable(c.PeerTimeout, nil)
	app := &App{
		config: c,
		logger: logger,
		table:  table,
		server: NewServer(c.ListenAddr, table, logger, c.SweepInterval, c.ReadBufferSize),
	}
	if c.HealthAddr != "" {
		app.health = NewHealthServer(c.HealthAddr, logger)
	}
	return app
}

// Run blocks until ctx is cancelled or a server fails. Either failure
// stops the other.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting app...", "peer_timeout", app.config.PeerTimeout.String())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	run := func(f func(context.Context) error) {
		defer wg.Done()
		if err := f(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
		cancel()
	}

	wg.Add(1)
	go run(app.server.Run)

	if app.health != nil {
		wg.Add(1)
		go run(app.health.Run)
	}

	wg.Wait()
	return firstErr
}
