package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tempo/internal/config"
	"tempo/internal/core"
	"tempo/internal/log"
	"tempo/internal/store"
	"tempo/internal/sync"
	syncmem "tempo/internal/sync/memory"
	"tempo/internal/sync/sheets"
)

// tempo-syncd pushes the local dataset to the remote store on a timer
// until it receives SIGINT or SIGTERM.
func main() {
	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     cfg.LogLevel,
		Component: log.ComponentSync,
		File:      cfg.LogFile,
	})
	log.SetDefault(logger)

	logger.Info("starting tempo-syncd")

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("failed to open store",
			log.FieldError, err,
			log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	db := store.NewDB(st)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var remote sync.RemoteStore
	if cfg.GoogleSpreadsheetID != "" {
		remote, err = sheets.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetPrefix)
		if err != nil {
			logger.Error("failed to build sheets remote", log.FieldError, err)
			os.Exit(1)
		}

		logger.Info("sheets remote ready", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		remote = syncmem.New()
		logger.Warn("no spreadsheet configured, pushing to an in-memory remote")
	}

	syncer := sync.New(db, remote, core.SystemClock(), logger)

	if err := syncer.Configure(ctx, true, cfg.SyncInterval); err != nil {
		logger.Error("failed to start sync loop", log.FieldError, err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := syncer.Stop(shutdownCtx); err != nil {
		logger.Warn("sync loop did not stop cleanly", log.FieldError, err)
	}

	logger.Info("tempo-syncd stopped")
}
