package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/flash-survey/catalog"
	"github.com/stevemurr/flash-survey/config"
	"github.com/stevemurr/flash-survey/events"
	"github.com/stevemurr/flash-survey/export"
	"github.com/stevemurr/flash-survey/logging"
	"github.com/stevemurr/flash-survey/store"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "flash-survey",
	Short:         "Collect, review and export Flash Survey responses",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, exportCmd, statsCmd, clearCmd)
}

// app holds everything a command needs, built once from configuration.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	blobs    *store.BlobStore
	store    store.Store
	notifier events.Notifier
	exporter *export.Exporter
	dates    export.DateFormatter
}

func newApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := logging.NewFromLevel(level)
	if err != nil {
		return nil, err
	}

	blobs, err := store.New(store.Options{
		Backend:       cfg.StoreBackend,
		DataDir:       cfg.DataDir,
		Key:           cfg.StoreKey,
		MaxRetries:    cfg.StoreMaxRetries,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create store (backend=%s): %w", cfg.StoreBackend, err)
	}

	c, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.ExportTimezone)
	if err != nil {
		return nil, fmt.Errorf("load export timezone %q: %w", cfg.ExportTimezone, err)
	}
	dates := export.NewDateFormatter(cfg.ExportLocale, loc)

	notifier := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaTimeout)

	return &app{
		cfg:      cfg,
		logger:   logger,
		blobs:    blobs,
		store:    events.WrapStore(blobs, notifier),
		notifier: notifier,
		exporter: export.New(c,
			export.WithDateFormatter(dates),
			export.WithLegacyQuoting(cfg.ExportLegacyQuoting),
		),
		dates: dates,
	}, nil
}

// context returns ctx carrying the application logger.
func (a *app) context(ctx context.Context) context.Context {
	return logging.ContextWithLogger(ctx, a.logger)
}

func (a *app) Close() {
	ctx := context.Background()
	if k, ok := a.notifier.(*events.KafkaNotifier); ok {
		if err := k.Close(); err != nil {
			a.logger.Warn(ctx, "close kafka writer", zap.Error(err))
		}
	}
	if err := a.blobs.Close(); err != nil {
		a.logger.Warn(ctx, "close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
