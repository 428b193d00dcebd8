package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jamespfennell/gtfs"
	"golang.org/x/sync/singleflight"

	"transitboard.app/internal/logging"
	"transitboard.app/internal/metrics"
	"transitboard.app/internal/models"
)

const (
	DefaultLiveTTL          = 30 * time.Second
	DefaultLiveFetchTimeout = 20 * time.Second
)

// LiveStoreOptions configures a LiveStore. Zero values fall back to the
// reference defaults.
type LiveStoreOptions struct {
	URL          string
	TTL          time.Duration
	FetchTimeout time.Duration
	Client       *http.Client
	Clock        func() time.Time
	Logger       *slog.Logger
	Metrics      *metrics.Collector
}

type liveSnapshot struct {
	updates   []models.TripUpdate
	fetchedAt time.Time
}

// LiveStore caches the decoded GTFS-RT trip updates feed. The live path
// never fails its caller: any fetch, decode, or timeout problem is
// logged and an empty update list is cached for the TTL, so arrival
// predictions degrade to the static schedule instead of blocking.
type LiveStore struct {
	opts  LiveStoreOptions
	group singleflight.Group

	mu   sync.RWMutex
	snap *liveSnapshot
}

func NewLiveStore(opts LiveStoreOptions) *LiveStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultLiveTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultLiveFetchTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LiveStore{opts: opts}
}

// GetUpdates returns the current decoded trip updates, refreshing when
// the cache has aged past the TTL. Concurrent callers coalesce into one
// upstream fetch. An empty list is a valid state, not an error.
func (s *LiveStore) GetUpdates(ctx context.Context) []models.TripUpdate {
	if snap := s.current(); snap != nil && !s.expired(snap) {
		return snap.updates
	}

	v, _, _ := s.group.Do("live", func() (interface{}, error) {
		if snap := s.current(); snap != nil && !s.expired(snap) {
			return snap, nil
		}
		// Refresh on behalf of all coalesced callers, detached from
		// the initiating request's cancellation.
		return s.refresh(context.WithoutCancel(ctx)), nil
	})
	return v.(*liveSnapshot).updates
}

// LastFetched reports when the cached updates were fetched, or the zero
// time when no fetch has happened yet.
func (s *LiveStore) LastFetched() time.Time {
	if snap := s.current(); snap != nil {
		return snap.fetchedAt
	}
	return time.Time{}
}

func (s *LiveStore) current() *liveSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *LiveStore) expired(snap *liveSnapshot) bool {
	return s.opts.Clock().Sub(snap.fetchedAt) > s.opts.TTL
}

// refresh always installs a snapshot: decoded updates on success, an
// empty list on failure. Caching the failure keeps a dead upstream from
// being hammered on every request for the rest of the TTL window.
func (s *LiveStore) refresh(ctx context.Context) *liveSnapshot {
	logger := s.opts.Logger.With(slog.String("component", "gtfs_live"))
	start := s.opts.Clock()

	updates, err := s.fetchAndDecode(ctx)
	if err != nil {
		logging.LogError(logger, "live feed unavailable, degrading to static schedule", err,
			slog.String("url", s.opts.URL))
		s.observeRefresh("error", start)
		updates = nil
	} else {
		s.observeRefresh("ok", start)
	}

	snap := &liveSnapshot{updates: updates, fetchedAt: s.opts.Clock()}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.LiveTripUpdates.Set(float64(len(updates)))
	}
	return snap
}

func (s *LiveStore) observeRefresh(outcome string, start time.Time) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.FeedRefreshes.WithLabelValues("live", outcome).Inc()
	s.opts.Metrics.FeedRefreshDuration.WithLabelValues("live").Observe(s.opts.Clock().Sub(start).Seconds())
}

func (s *LiveStore) fetchAndDecode(ctx context.Context) ([]models.TripUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: err}
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: err}
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		s.opts.Logger.With(slog.String("component", "gtfs_live")), "http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: err}
	}

	realtime, err := gtfs.ParseRealtime(payload, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, &FeedParseError{Source: "gtfs-rt feed", Err: err}
	}

	return convertTripUpdates(realtime), nil
}

// convertTripUpdates maps the decoded feed entities onto our own model
// at the package boundary. Entities without a trip ID are dropped here;
// updates for stops nobody is asking about are ignored later, at
// resolution time.
func convertTripUpdates(realtime *gtfs.Realtime) []models.TripUpdate {
	updates := make([]models.TripUpdate, 0, len(realtime.Trips))
	for _, trip := range realtime.Trips {
		if trip.ID.ID == "" {
			continue
		}
		update := models.TripUpdate{TripID: trip.ID.ID}
		for _, stu := range trip.StopTimeUpdates {
			if stu.StopID == nil {
				continue
			}
			pred := models.StopPrediction{StopID: *stu.StopID}
			if stu.Arrival != nil && stu.Arrival.Time != nil {
				pred.Arrival = stu.Arrival.Time
			}
			if stu.Departure != nil && stu.Departure.Time != nil {
				pred.Departure = stu.Departure.Time
			}
			if pred.Arrival == nil && pred.Departure == nil {
				continue
			}
			update.StopUpdates = append(update.StopUpdates, pred)
		}
		updates = append(updates, update)
	}
	return updates
}
