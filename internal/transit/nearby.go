package transit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"transitboard.app/internal/geo"
	"transitboard.app/internal/logging"
	"transitboard.app/internal/metrics"
	"transitboard.app/internal/models"
)

const (
	DefaultRadiusKm   = 10.0
	DefaultMaxStops   = 60
	defaultFanOut     = 8
	maxRequestRadius  = 50.0
	maxRequestResults = 200
)

// InvalidCoordinateError rejects absent or unusable query coordinates.
// Coordinates are never silently defaulted; a missing latitude is a
// client error, not a query for the Gulf of Guinea.
type InvalidCoordinateError struct {
	Field string
	Value string
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate %s=%q", e.Field, e.Value)
}

// StaticProvider yields the current static feed snapshot.
type StaticProvider interface {
	GetSnapshot(ctx context.Context) (*models.StaticSnapshot, error)
}

// LiveProvider yields the current decoded live trip updates. It never
// fails; an empty list means no live data this cycle.
type LiveProvider interface {
	GetUpdates(ctx context.Context) []models.TripUpdate
}

// ServiceOptions configures a Service. Zero values fall back to the
// reference defaults.
type ServiceOptions struct {
	RadiusKm float64
	MaxStops int
	FanOut   int
	Clock    func() time.Time
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

// Service answers "what stops are near me and when does something
// arrive" by joining the static snapshot, the live overlay, and the
// proximity search.
type Service struct {
	static StaticProvider
	live   LiveProvider
	opts   ServiceOptions
}

func NewService(static StaticProvider, live LiveProvider, opts ServiceOptions) *Service {
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = DefaultRadiusKm
	}
	if opts.MaxStops <= 0 {
		opts.MaxStops = DefaultMaxStops
	}
	if opts.FanOut <= 0 {
		opts.FanOut = defaultFanOut
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{static: static, live: live, opts: opts}
}

// Query carries one nearby-stops request. RadiusKm and MaxResults of 0
// take the service defaults.
type Query struct {
	Lat        float64
	Lon        float64
	RadiusKm   float64
	MaxResults int
}

type stopWithDistance struct {
	stop     models.Stop
	distance float64
}

// FindNearby returns the stops within the radius of the query point,
// closest first, each with its resolved upcoming arrivals. Static feed
// failures propagate; live feed problems only degrade the arrivals to
// schedule-only.
func (s *Service) FindNearby(ctx context.Context, q Query) ([]models.StopResult, error) {
	if !geo.IsValidLatLon(q.Lat, q.Lon) {
		return nil, &InvalidCoordinateError{Field: "lat,lon", Value: fmt.Sprintf("%v,%v", q.Lat, q.Lon)}
	}

	radius := q.RadiusKm
	if radius <= 0 || radius > maxRequestRadius {
		radius = s.opts.RadiusKm
	}
	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > maxRequestResults {
		maxResults = s.opts.MaxStops
	}

	snap, err := s.static.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	// StopList is in stable ID order, so equal distances keep a
	// deterministic ordering through the stable sort below.
	candidates := make([]stopWithDistance, 0, 64)
	for _, stop := range snap.StopList {
		d := geo.Distance(q.Lat, q.Lon, stop.Lat, stop.Lon)
		if d <= radius {
			candidates = append(candidates, stopWithDistance{stop: stop, distance: d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	// One live fetch for the whole request; the store's cache absorbs
	// the per-stop fan-out.
	updates := s.live.GetUpdates(ctx)
	now := s.opts.Clock()

	results := make([]models.StopResult, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FanOut)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = models.StopResult{
				ID:        cand.stop.ID,
				Name:      cand.stop.Name,
				Latitude:  cand.stop.Lat,
				Longitude: cand.stop.Lon,
				Distance:  cand.distance,
				Arrivals:  ResolveArrivals(cand.stop.ID, snap, updates, now),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.NearbyStopsReturned.Observe(float64(len(results)))
	}
	if snap.Stale {
		logging.LogOperation(s.opts.Logger.With(slog.String("component", "nearby")),
			"served_from_stale_snapshot", slog.Time("fetched_at", snap.FetchedAt))
	}
	return results, nil
}
