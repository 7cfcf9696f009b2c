package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/canvas/internal/board"
	"github.com/alfredjeanlab/canvas/internal/catalog"
	"github.com/alfredjeanlab/canvas/internal/config"
	"github.com/alfredjeanlab/canvas/internal/events"
	"github.com/alfredjeanlab/canvas/internal/hooks"
	"github.com/alfredjeanlab/canvas/internal/server"
	"github.com/alfredjeanlab/canvas/internal/store"
	"github.com/alfredjeanlab/canvas/internal/store/memory"
	"github.com/alfredjeanlab/canvas/internal/store/postgres"
	cvsync "github.com/alfredjeanlab/canvas/internal/sync"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the Canvas HTTP server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		cat, err := loadCatalog(cfg.CatalogDir)
		if err != nil {
			return err
		}
		logger.Info("catalog loaded", "datasets", len(cat.ListDatasets()))

		var st store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			st = pg
		} else {
			st = memory.New()
			logger.Info("using in-memory store (CANVAS_DATABASE_URL not set)")
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (CANVAS_NATS_URL not set)")
		}

		manager := board.NewManager(st, cat, cfg.GridColumns)
		canvasServer := server.New(manager, st, publisher)

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           canvasServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		canvasServer.Presence().StartReaper(nil)

		scheduler := startSync(cfg, st, logger)

		hooksCancel, err := startHooks(cfg, logger)
		if err != nil {
			logger.Error("event hooks disabled", "err", err)
		}

		logger.Info("canvas server started",
			"http_addr", cfg.HTTPAddr,
			"grid_columns", cfg.GridColumns,
			"auth", cfg.AuthToken != "",
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		canvasServer.Presence().Stop()

		if hooksCancel != nil {
			hooksCancel()
			logger.Info("hooks subscriber stopped")
		}

		// Stop after the HTTP server so the final export sees every write.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// loadCatalog returns the builtin datasets, merged with the files in dir
// when it is set.
func loadCatalog(dir string) (*catalog.Catalog, error) {
	cat, err := catalog.Builtin()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return cat, nil
	}
	extra, err := catalog.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return catalog.Merge(cat, extra)
}

// startSync starts the export scheduler when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(cfg *config.Config, st store.Store, logger *slog.Logger) *cvsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []cvsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := cvsync.NewS3Destination(
			context.Background(),
			cfg.SyncS3Bucket,
			cfg.SyncS3Key,
			cfg.SyncS3Region,
			cfg.SyncS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, cvsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}
	scheduler := cvsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}

// startHooks runs the hooks file's commands for events seen on NATS. It
// returns a nil cancel func when hooks are not configured.
func startHooks(cfg *config.Config, logger *slog.Logger) (context.CancelFunc, error) {
	if cfg.HooksFile == "" {
		return nil, nil
	}
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("CANVAS_HOOKS_FILE needs CANVAS_NATS_URL")
	}
	list, err := hooks.LoadFile(cfg.HooksFile)
	if err != nil {
		return nil, err
	}
	sub, err := events.NewNATSSubscriber(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("creating hooks subscriber: %w", err)
	}
	handler := hooks.NewHandler(list, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := handler.StartSubscriber(ctx, sub); err != nil {
			logger.Error("hooks subscriber error", "err", err)
		}
		sub.Close()
	}()
	logger.Info("hooks subscriber started", "file", cfg.HooksFile, "hooks", len(list))
	return cancel, nil
}
