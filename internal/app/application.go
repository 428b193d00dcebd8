package app

import (
	"log/slog"

	"transitboard.app/internal/config"
	"transitboard.app/internal/gtfs"
	"transitboard.app/internal/metrics"
	"transitboard.app/internal/transit"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware. Everything is constructed once in main and threaded
// through explicitly; there are no package-level singletons.
type Application struct {
	Config      config.Config
	Logger      *slog.Logger
	Metrics     *metrics.Collector
	StaticStore *gtfs.StaticStore
	LiveStore   *gtfs.LiveStore
	Nearby      *transit.Service
}
