package restapi

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	rt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"transitboard.app/internal/app"
	"transitboard.app/internal/gtfs"
	"transitboard.app/internal/metrics"
	"transitboard.app/internal/transit"
)

// testNow anchors every fixture schedule so arrival math is stable.
var testNow = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

func testFeedZip(t *testing.T) []byte {
	t.Helper()
	tables := map[string]string{
		"routes.txt": strings.Join([]string{
			"route_id,route_short_name,route_long_name,route_type",
			"R1,10,Main Street Express,3",
			"R2,Blue,Harbor Line,1",
		}, "\n"),
		"trips.txt": strings.Join([]string{
			"route_id,trip_id,trip_headsign,direction_id",
			"R1,T1,Downtown,0",
			"R2,T2,Harbor,0",
		}, "\n"),
		"stops.txt": strings.Join([]string{
			"stop_id,stop_name,stop_lat,stop_lon",
			"S1,Main & First,43.900000,-78.900000",
			"S2,Main & Second,43.901000,-78.901000",
		}, "\n"),
		"stop_times.txt": strings.Join([]string{
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"T1,08:05:00,08:05:30,S1,1",
			"T1,08:07:00,08:07:30,S2,2",
			"T2,08:12:00,08:12:00,S1,1",
		}, "\n"),
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, content := range tables {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// testRealtimeFeed predicts T1 four minutes late at S1.
func testRealtimeFeed(t *testing.T) []byte {
	t.Helper()
	predicted := testNow.Add(9 * time.Minute)
	feed := &rt.FeedMessage{
		Header: &rt.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*rt.FeedEntity{{
			Id: proto.String("1"),
			TripUpdate: &rt.TripUpdate{
				Trip: &rt.TripDescriptor{TripId: proto.String("T1")},
				StopTimeUpdate: []*rt.TripUpdate_StopTimeUpdate{{
					StopId:  proto.String("S1"),
					Arrival: &rt.TripUpdate_StopTimeEvent{Time: proto.Int64(predicted.Unix())},
				}},
			},
		}},
	}
	payload, err := proto.Marshal(feed)
	require.NoError(t, err)
	return payload
}

type testApiOptions struct {
	staticDown bool
	liveDown   bool
}

func createTestApi(t *testing.T, opts testApiOptions) *RestAPI {
	t.Helper()

	staticPayload := testFeedZip(t)
	staticSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.staticDown {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(staticPayload) // nolint
	}))
	t.Cleanup(staticSrv.Close)

	livePayload := testRealtimeFeed(t)
	liveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.liveDown {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(livePayload) // nolint
	}))
	t.Cleanup(liveSrv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector := metrics.NewCollector()
	clock := func() time.Time { return testNow }

	staticStore := gtfs.NewStaticStore(gtfs.StaticStoreOptions{
		URL: staticSrv.URL, Clock: clock, Logger: logger, Metrics: collector,
	})
	liveStore := gtfs.NewLiveStore(gtfs.LiveStoreOptions{
		URL: liveSrv.URL, Clock: clock, Logger: logger, Metrics: collector,
	})
	nearby := transit.NewService(staticStore, liveStore, transit.ServiceOptions{
		Clock: clock, Logger: logger, Metrics: collector,
	})

	return NewRestAPI(&app.Application{
		Logger:      logger,
		Metrics:     collector,
		StaticStore: staticStore,
		LiveStore:   liveStore,
		Nearby:      nearby,
	})
}

// serveAndRetrieveEndpoint issues one request against the full handler
// tree and decodes the JSON body into a generic map.
func serveAndRetrieveEndpoint(t *testing.T, api *RestAPI, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var model map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &model))
	return resp, model
}
