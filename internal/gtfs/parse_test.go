package gtfs

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitboard.app/internal/models"
)

// buildFeedZip assembles an in-memory GTFS archive from table name to
// CSV lines.
func buildFeedZip(t *testing.T, tables map[string][]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, lines := range tables {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(lines, "\n") + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func defaultTables() map[string][]string {
	return map[string][]string{
		"routes.txt": {
			"route_id,route_short_name,route_long_name,route_type,route_color",
			"R1,10,Main Street Express,3,FF0000",
			"R2,Blue,Harbor Line,1,",
		},
		"trips.txt": {
			"route_id,trip_id,trip_headsign,direction_id",
			"R1,T1,Downtown,0",
			"R1,T2,Uptown,1",
			"R2,T3,Harbor,0",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"S1,Main & First,43.900000,-78.900000",
			"S2,Main & Second,43.901000,-78.901000",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"T1,08:00:00,08:01:00,S1,1",
			"T1,08:10:00,08:11:00,S2,2",
			"T2,09:00:00,09:00:00,S2,1",
			"T3,25:30:00,25:30:00,S1,1",
		},
	}
}

func TestParseStaticBuildsSnapshot(t *testing.T) {
	fetchedAt := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	snap, err := ParseStatic(buildFeedZip(t, defaultTables()), fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, fetchedAt, snap.FetchedAt)
	assert.False(t, snap.Stale)

	require.Len(t, snap.Routes, 2)
	assert.Equal(t, "10", snap.Routes["R1"].ShortName)
	assert.Equal(t, models.RouteTypeBus, snap.Routes["R1"].Type)
	assert.Equal(t, models.RouteTypeSubway, snap.Routes["R2"].Type)

	require.Len(t, snap.Trips, 3)
	assert.Equal(t, "Downtown", snap.Trips["T1"].Headsign)
	assert.Equal(t, 1, snap.Trips["T2"].DirectionID)

	require.Len(t, snap.Stops, 2)
	assert.InDelta(t, 43.9, snap.Stops["S1"].Lat, 1e-9)
	assert.InDelta(t, -78.9, snap.Stops["S1"].Lon, 1e-9)

	assert.Len(t, snap.StopTimesByStop["S1"], 2)
	assert.Len(t, snap.StopTimesByStop["S2"], 2)
	assert.Len(t, snap.StopTimesByTrip["T1"], 2)
}

func TestParseStaticIndexes(t *testing.T) {
	snap, err := ParseStatic(buildFeedZip(t, defaultTables()), time.Now())
	require.NoError(t, err)

	require.Len(t, snap.StopList, 2)
	assert.Equal(t, "S1", snap.StopList[0].ID)
	assert.Equal(t, "S2", snap.StopList[1].ID)

	assert.Equal(t, []string{"T1", "T2"}, snap.TripsByRoute["R1"])
	assert.Equal(t, []string{"T3"}, snap.TripsByRoute["R2"])

	sts := snap.StopTimesByTrip["T1"]
	require.Len(t, sts, 2)
	assert.Equal(t, 1, sts[0].StopSequence)
	assert.Equal(t, 2, sts[1].StopSequence)
}

func TestParseStaticMissingTable(t *testing.T) {
	tables := defaultTables()
	delete(tables, "stop_times.txt")

	_, err := ParseStatic(buildFeedZip(t, tables), time.Now())
	require.Error(t, err)

	var parseErr *FeedParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "stop_times.txt", parseErr.Source)
}

func TestParseStaticNotAZip(t *testing.T) {
	_, err := ParseStatic([]byte("route_id,route_short_name\n"), time.Now())

	var parseErr *FeedParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParseStaticSkipsBrokenRows(t *testing.T) {
	tables := defaultTables()
	tables["stops.txt"] = []string{
		"stop_id,stop_name,stop_lat,stop_lon",
		"S1,Main & First,43.900000,-78.900000",
		",Nameless,43.9,-78.9",
		"S3,No Coordinates,,",
		"S4,Bad Coordinates,north,west",
	}
	tables["stop_times.txt"] = []string{
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
		"T1,08:00:00,08:01:00,S1,1",
		"T1,not-a-time,08:11:00,S1,2",
		",08:20:00,08:21:00,S1,3",
	}

	snap, err := ParseStatic(buildFeedZip(t, tables), time.Now())
	require.NoError(t, err)

	assert.Len(t, snap.Stops, 1)
	assert.Len(t, snap.StopTimesByStop["S1"], 1)
}

func TestParseStaticDepartureDefaultsToArrival(t *testing.T) {
	tables := defaultTables()
	tables["stop_times.txt"] = []string{
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
		"T1,08:00:00,,S1,1",
	}

	snap, err := ParseStatic(buildFeedZip(t, tables), time.Now())
	require.NoError(t, err)

	sts := snap.StopTimesByStop["S1"]
	require.Len(t, sts, 1)
	assert.Equal(t, sts[0].Arrival, sts[0].Departure)
}

func TestParseStaticHandlesBOMAndUnknownColumns(t *testing.T) {
	tables := defaultTables()
	tables["routes.txt"] = []string{
		"\ufeffroute_id,route_short_name,route_type,agency_id",
		"R1,10,3,AGENCY",
	}
	tables["trips.txt"] = []string{
		"route_id,trip_id",
		"R1,T1",
	}

	snap, err := ParseStatic(buildFeedZip(t, tables), time.Now())
	require.NoError(t, err)

	require.Contains(t, snap.Routes, "R1")
	assert.Equal(t, "10", snap.Routes["R1"].ShortName)
}

func TestParseStaticOvernightTimes(t *testing.T) {
	snap, err := ParseStatic(buildFeedZip(t, defaultTables()), time.Now())
	require.NoError(t, err)

	sts := snap.StopTimesByTrip["T3"]
	require.Len(t, sts, 1)

	ref := time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC)
	arrival := sts[0].Arrival.Materialize(ref)
	assert.Equal(t, time.Date(2025, time.March, 11, 1, 30, 0, 0, time.UTC), arrival)
}

func TestParseStaticUnknownRouteType(t *testing.T) {
	tables := defaultTables()
	tables["routes.txt"] = []string{
		"route_id,route_short_name,route_type",
		"R1,10,715",
		"R2,11,ferry",
	}

	snap, err := ParseStatic(buildFeedZip(t, tables), time.Now())
	require.NoError(t, err)

	assert.Equal(t, models.RouteTypeOther, snap.Routes["R1"].Type)
	assert.Equal(t, models.RouteTypeOther, snap.Routes["R2"].Type)
}
