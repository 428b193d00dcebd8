package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"transitboard.app/internal/logging"
	"transitboard.app/internal/metrics"
	"transitboard.app/internal/models"
)

const (
	DefaultStaticTTL          = time.Hour
	DefaultStaticFetchTimeout = 15 * time.Second
)

// StaticStoreOptions configures a StaticStore. Zero values fall back to
// the reference defaults.
type StaticStoreOptions struct {
	URL          string
	TTL          time.Duration
	FetchTimeout time.Duration
	Client       *http.Client
	Clock        func() time.Time
	Logger       *slog.Logger
	Metrics      *metrics.Collector
}

// StaticStore is a pull-through cache over the published GTFS schedule
// archive. One snapshot is held process-wide and replaced wholesale
// when its age exceeds the TTL. Concurrent callers observing a stale
// snapshot coalesce into a single upstream fetch.
type StaticStore struct {
	opts  StaticStoreOptions
	group singleflight.Group

	mu   sync.RWMutex
	snap *models.StaticSnapshot
}

func NewStaticStore(opts StaticStoreOptions) *StaticStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultStaticTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultStaticFetchTimeout
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
	return &StaticStore{opts: opts}
}

// GetSnapshot returns the current snapshot, refreshing first when none
// exists or the cached one has aged past the TTL. A failed refresh
// falls back to the previous snapshot, flagged stale, rather than
// leaving the store with no data; with no previous snapshot the error
// propagates.
func (s *StaticStore) GetSnapshot(ctx context.Context) (*models.StaticSnapshot, error) {
	if snap := s.current(); snap != nil && !s.expired(snap) {
		return snap, nil
	}

	v, err, _ := s.group.Do("static", func() (interface{}, error) {
		// Re-check under the flight: another caller may have refreshed
		// while this one was queued.
		if snap := s.current(); snap != nil && !s.expired(snap) {
			return snap, nil
		}
		// The refresh serves every coalesced caller, so it must not die
		// with whichever request happened to initiate it. The fetch
		// timeout still bounds it.
		return s.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		if prev := s.current(); prev != nil {
			logger := s.opts.Logger.With(slog.String("component", "gtfs_static"))
			logging.LogError(logger, "static feed refresh failed, serving stale snapshot", err,
				slog.Time("fetched_at", prev.FetchedAt))
			stale := *prev
			stale.Stale = true
			return &stale, nil
		}
		return nil, err
	}
	return v.(*models.StaticSnapshot), nil
}

// LastFetched reports when the cached snapshot was built, or the zero
// time when nothing has been loaded yet.
func (s *StaticStore) LastFetched() time.Time {
	if snap := s.current(); snap != nil {
		return snap.FetchedAt
	}
	return time.Time{}
}

func (s *StaticStore) current() *models.StaticSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *StaticStore) expired(snap *models.StaticSnapshot) bool {
	return s.opts.Clock().Sub(snap.FetchedAt) > s.opts.TTL
}

func (s *StaticStore) refresh(ctx context.Context) (*models.StaticSnapshot, error) {
	logger := s.opts.Logger.With(slog.String("component", "gtfs_static"))
	logging.LogOperation(logger, "refreshing_static_feed", slog.String("url", s.opts.URL))
	start := s.opts.Clock()

	payload, err := s.download(ctx)
	if err != nil {
		s.observeRefresh("fetch_error", start)
		return nil, err
	}

	snap, err := ParseStatic(payload, s.opts.Clock())
	if err != nil {
		s.observeRefresh("parse_error", start)
		return nil, err
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.observeRefresh("ok", start)
	logging.LogOperation(logger, "static_feed_refreshed",
		slog.Int("stops", len(snap.Stops)),
		slog.Int("routes", len(snap.Routes)),
		slog.Int("trips", len(snap.Trips)))
	return snap, nil
}

func (s *StaticStore) download(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: err}
	}

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: err}
	}
	defer resp.Body.Close() // nolint

	if resp.StatusCode != http.StatusOK {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FeedFetchError{URL: s.opts.URL, Err: err}
	}
	return payload, nil
}

func (s *StaticStore) observeRefresh(outcome string, start time.Time) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.FeedRefreshes.WithLabelValues("static", outcome).Inc()
	s.opts.Metrics.FeedRefreshDuration.WithLabelValues("static").Observe(s.opts.Clock().Sub(start).Seconds())
}
