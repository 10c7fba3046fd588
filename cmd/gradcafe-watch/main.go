package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gradcafe/internal/config"
	"gradcafe/internal/jobs"
	"gradcafe/internal/listener"
	"gradcafe/internal/logging"
	"gradcafe/internal/pipeline"
	"gradcafe/internal/scrape"
	"gradcafe/internal/standardizer"
	"gradcafe/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DBDSN, log)
	must(err)
	defer store.Close()

	processor := pipeline.NewProcessingService(store, standardizer.NewClient(cfg, log), cfg, log)
	svc := listener.NewService(scrape.NewService(cfg, log), processor, store, jobs.NewCoordinator(log), cfg, log)

	log.Info().Dur("interval", cfg.WatchInterval()).Msg("watching for new results")
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
