// Package main provides the entry point for the bqbridge server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/datalinkhq/bqbridge/internal/server"
	"github.com/datalinkhq/bqbridge/pkg/bridge"
	"github.com/datalinkhq/bqbridge/pkg/commit"
	"github.com/datalinkhq/bqbridge/pkg/config"
	"github.com/datalinkhq/bqbridge/pkg/database/migrate"
	"github.com/datalinkhq/bqbridge/pkg/health"
	jobPostgres "github.com/datalinkhq/bqbridge/pkg/jobstore/postgres"
	catalogPostgres "github.com/datalinkhq/bqbridge/pkg/metastore/postgres"
	"github.com/datalinkhq/bqbridge/pkg/scratch"
	"github.com/datalinkhq/bqbridge/pkg/warehouse/bigquery"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	migrateOnly bool
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "bqbridge.yaml", "Path to configuration file")
	flag.BoolVar(&opts.migrateOnly, "migrate-only", false, "Apply database migrations and exit")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("bqbridge version %s\n", server.Version)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrate.Run(db); err != nil {
		return err
	}
	if opts.migrateOnly {
		return nil
	}

	ctx := setupSignalHandler()

	scr, err := newScratch(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Warehouse.Project == "" {
		return fmt.Errorf("warehouse project is required")
	}
	wh, err := bigquery.New(ctx, cfg.Warehouse.Project)
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	store, err := bridge.New(catalogPostgres.New(db), wh, nil)
	if err != nil {
		return fmt.Errorf("creating catalog bridge: %w", err)
	}

	jobs := jobPostgres.New(db)
	committer, err := commit.New(
		commit.Config{WriteMethod: cfg.Job.WriteMethod},
		jobs,
		commit.NewDirectCommitter(wh),
		commit.NewIndirectCommitter(wh, scr),
		scr,
	)
	if err != nil {
		return fmt.Errorf("creating committer: %w", err)
	}

	checker := health.NewChecker(db)
	srv, err := server.New(store, jobs, committer, checker)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	checker.SetReady()

	return serve(ctx, cfg.Listen, srv.Router(), checker)
}

func newScratch(ctx context.Context, cfg *config.Config) (scratch.Storage, error) {
	switch cfg.Scratch.Backend {
	case "s3":
		s3, err := scratch.NewS3(ctx, scratch.S3Config{
			Bucket:   cfg.Scratch.Bucket,
			Region:   cfg.Scratch.Region,
			Endpoint: cfg.Scratch.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("creating s3 scratch storage: %w", err)
		}
		return s3, nil
	default:
		return scratch.NewLocal(cfg.Scratch.Root), nil
	}
}

// serve runs the HTTP server until ctx is canceled, then drains and shuts it
// down gracefully.
func serve(ctx context.Context, addr string, handler http.Handler, checker *health.Checker) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		if checker != nil {
			checker.SetDraining()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
