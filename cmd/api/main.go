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

	"transitboard.app/internal/app"
	"transitboard.app/internal/config"
	"transitboard.app/internal/gtfs"
	"transitboard.app/internal/logging"
	"transitboard.app/internal/metrics"
	"transitboard.app/internal/restapi"
	"transitboard.app/internal/transit"
)

func main() {
	var (
		configPath string
		port       int
		env        string
		staticURL  string
		liveURL    string
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.IntVar(&port, "port", 0, "API server port (overrides config)")
	flag.StringVar(&env, "env", "", "Environment (development|staging|production)")
	flag.StringVar(&staticURL, "static-feed-url", "", "URL for the static GTFS zip file")
	flag.StringVar(&liveURL, "live-feed-url", "", "URL for the GTFS-RT trip updates feed")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if port != 0 {
		cfg.Port = port
	}
	if env != "" {
		cfg.Env = env
	}
	if staticURL != "" {
		cfg.StaticFeedURL = staticURL
	}
	if liveURL != "" {
		cfg.LiveFeedURL = liveURL
	}

	var logger *slog.Logger
	if cfg.Env == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	} else {
		logger = logging.NewStructuredLogger(os.Stdout, slog.LevelInfo)
	}

	collector := metrics.NewCollector()

	staticStore := gtfs.NewStaticStore(gtfs.StaticStoreOptions{
		URL:     cfg.StaticFeedURL,
		TTL:     cfg.StaticTTL,
		Logger:  logger,
		Metrics: collector,
	})
	liveStore := gtfs.NewLiveStore(gtfs.LiveStoreOptions{
		URL:          cfg.LiveFeedURL,
		TTL:          cfg.LiveTTL,
		FetchTimeout: cfg.LiveFetchTimeout,
		Logger:       logger,
		Metrics:      collector,
	})
	nearby := transit.NewService(staticStore, liveStore, transit.ServiceOptions{
		RadiusKm: cfg.RadiusKm,
		MaxStops: cfg.MaxStops,
		Logger:   logger,
		Metrics:  collector,
	})

	application := &app.Application{
		Config:      cfg,
		Logger:      logger,
		Metrics:     collector,
		StaticStore: staticStore,
		LiveStore:   liveStore,
		Nearby:      nearby,
	}

	// Warm the static cache before accepting traffic; a cold failure
	// here is a startup error, not a per-request 500 storm.
	warmCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if _, err := staticStore.GetSnapshot(warmCtx); err != nil {
		logger.Error("failed to load static feed", "error", err)
	}
	cancel()

	api := restapi.NewRestAPI(application)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
