package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/leavesync/api"
	dbfs "github.com/garnizeh/leavesync/db"
	"github.com/garnizeh/leavesync/internal/config"
	"github.com/garnizeh/leavesync/internal/db"
	"github.com/garnizeh/leavesync/internal/jobs"
	"github.com/garnizeh/leavesync/internal/repository/sqlite"
	"github.com/garnizeh/leavesync/internal/store"
	"github.com/garnizeh/leavesync/internal/syncer"
	"github.com/garnizeh/leavesync/pkg/mailer"
	"github.com/garnizeh/leavesync/pkg/notion"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	serve := flag.Bool("serve", false, "Run the admin API and the interval scheduler instead of a single pass")
	flag.Parse()

	if err := run(*configPath, *serve); err != nil {
		slog.Error("leavesync failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, serve bool) error {
	if n, err := config.LoadEnv(".env", ".env.local"); err != nil {
		return fmt.Errorf("load env files: %w", err)
	} else if n > 0 {
		slog.Debug("loaded env files", "count", n)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if serve {
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
	}

	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	notion.SetLogger(logger)
	mailer.SetLogger(logger)
	api.SetLogger(logger)

	logger.Info("starting leavesync", "version", version, "build_time", buildTime, "serve", serve, "dry_run", cfg.Sync.DryRun)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer database.Close()
	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	repo := sqlite.New(database, logger)

	client, err := notion.NewDefaultClient(cfg.Notion)
	if err != nil {
		return fmt.Errorf("notion client: %w", err)
	}
	defer client.Close()

	sender, err := mailer.NewSMTPSender(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}

	s := syncer.New(syncer.Deps{
		Requests:  store.NewRequests(client, cfg.Notion, cfg.Sync, logger),
		Employees: store.NewEmployees(client, cfg.Notion, logger),
		Notifier:  mailer.NewDispatcher(sender),
		Ledger:    repo,
		Runs:      repo,
	}, cfg.Sync.DryRun, logger)

	if !serve {
		_, err := s.Run(ctx, syncer.TriggerCLI)
		return err
	}
	return serveAPI(ctx, cfg, logger, database, repo, client, s)
}

func serveAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, database *db.DB, repo *sqlite.SQLiteRepo, client *notion.Client, s *syncer.Syncer) error {
	pool := jobs.NewWorkerPool(jobs.NewRepository(database), map[string]jobs.Handler{
		jobs.TypeSync: jobs.NewSyncHandler(s, logger),
	}, logger, 1)
	scheduler := jobs.NewScheduler(pool, cfg.Sync.Interval, cfg.Sync.JobMaxAttempts, logger)

	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Runs:    repo,
		Ledger:  repo,
		Trigger: scheduler,
		Health:  client.Health,
	})
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		pool.Start(gctx)
		<-gctx.Done()
		pool.Stop()
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
