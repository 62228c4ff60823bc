package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/peershare/internal/logging"
	"github.com/dmitrijs2005/peershare/internal/registry"
	"github.com/dmitrijs2005/peershare/internal/registry/config"
)

func main() {

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)
	app := registry.NewApp(cfg, logger)

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}
