package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"transitboard.app/internal/models"
)

// requiredTables are the GTFS members a usable snapshot needs. A zip
// missing any of them fails that refresh outright.
var requiredTables = []string{"routes.txt", "trips.txt", "stop_times.txt", "stops.txt"}

// ParseStatic parses a GTFS zip payload into an immutable snapshot.
// Rows with missing required columns are skipped; a missing table or a
// table that does not parse as CSV with a header row is fatal.
func ParseStatic(payload []byte, fetchedAt time.Time) (*models.StaticSnapshot, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, &FeedParseError{Source: "gtfs zip", Err: err}
	}

	members := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		members[strings.ToLower(f.Name)] = f
	}
	for _, name := range requiredTables {
		if _, ok := members[name]; !ok {
			return nil, &FeedParseError{Source: name, Err: fmt.Errorf("required table missing from archive")}
		}
	}

	snap := &models.StaticSnapshot{
		Routes:          make(map[string]models.Route),
		Trips:           make(map[string]models.Trip),
		Stops:           make(map[string]models.Stop),
		StopTimesByStop: make(map[string][]models.StopTime),
		StopTimesByTrip: make(map[string][]models.StopTime),
		TripsByRoute:    make(map[string][]string),
		FetchedAt:       fetchedAt,
	}

	if err := consumeTable(members["routes.txt"], consumeRoute(snap)); err != nil {
		return nil, err
	}
	if err := consumeTable(members["trips.txt"], consumeTrip(snap)); err != nil {
		return nil, err
	}
	if err := consumeTable(members["stops.txt"], consumeStop(snap)); err != nil {
		return nil, err
	}
	if err := consumeTable(members["stop_times.txt"], consumeStopTime(snap)); err != nil {
		return nil, err
	}

	indexSnapshot(snap)
	return snap, nil
}

// tableRow gives column access by header name for one CSV record.
type tableRow struct {
	header map[string]int
	fields []string
}

// get returns the trimmed value of a column, or "" if the column is
// absent from the table or the row is short.
func (r tableRow) get(col string) string {
	i, ok := r.header[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func consumeTable(f *zip.File, consume func(tableRow)) error {
	rc, err := f.Open()
	if err != nil {
		return &FeedParseError{Source: f.Name, Err: err}
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	cr.FieldsPerRecord = -1 // upstream feeds pad rows inconsistently
	cr.LazyQuotes = true

	head, err := cr.Read()
	if err != nil {
		return &FeedParseError{Source: f.Name, Err: fmt.Errorf("reading header row: %w", err)}
	}
	header := make(map[string]int, len(head))
	for i, col := range head {
		// Strip the UTF-8 BOM some publishers prepend to the first column.
		header[strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")] = i
	}

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &FeedParseError{Source: f.Name, Err: err}
		}
		consume(tableRow{header: header, fields: fields})
	}
}

func consumeRoute(snap *models.StaticSnapshot) func(tableRow) {
	return func(row tableRow) {
		id := row.get("route_id")
		if id == "" {
			return
		}
		snap.Routes[id] = models.Route{
			ID:        id,
			ShortName: row.get("route_short_name"),
			LongName:  row.get("route_long_name"),
			Type:      parseRouteType(row.get("route_type")),
			Color:     row.get("route_color"),
			TextColor: row.get("route_text_color"),
		}
	}
}

func consumeTrip(snap *models.StaticSnapshot) func(tableRow) {
	return func(row tableRow) {
		id := row.get("trip_id")
		routeID := row.get("route_id")
		if id == "" || routeID == "" {
			return
		}
		direction, _ := strconv.Atoi(row.get("direction_id"))
		snap.Trips[id] = models.Trip{
			ID:          id,
			RouteID:     routeID,
			Headsign:    row.get("trip_headsign"),
			DirectionID: direction,
		}
	}
}

func consumeStop(snap *models.StaticSnapshot) func(tableRow) {
	return func(row tableRow) {
		id := row.get("stop_id")
		if id == "" {
			return
		}
		lat, latErr := strconv.ParseFloat(row.get("stop_lat"), 64)
		lon, lonErr := strconv.ParseFloat(row.get("stop_lon"), 64)
		if latErr != nil || lonErr != nil {
			return
		}
		snap.Stops[id] = models.Stop{
			ID:   id,
			Name: row.get("stop_name"),
			Lat:  lat,
			Lon:  lon,
		}
	}
}

func consumeStopTime(snap *models.StaticSnapshot) func(tableRow) {
	return func(row tableRow) {
		tripID := row.get("trip_id")
		stopID := row.get("stop_id")
		if tripID == "" || stopID == "" {
			return
		}
		arrival, err := models.ParseGTFSTime(row.get("arrival_time"))
		if err != nil {
			return
		}
		departure, err := models.ParseGTFSTime(row.get("departure_time"))
		if err != nil {
			departure = arrival
		}
		seq, _ := strconv.Atoi(row.get("stop_sequence"))
		st := models.StopTime{
			TripID:       tripID,
			StopID:       stopID,
			Arrival:      arrival,
			Departure:    departure,
			StopSequence: seq,
		}
		snap.StopTimesByStop[stopID] = append(snap.StopTimesByStop[stopID], st)
		snap.StopTimesByTrip[tripID] = append(snap.StopTimesByTrip[tripID], st)
	}
}

func parseRouteType(s string) models.RouteType {
	n, err := strconv.Atoi(s)
	if err != nil {
		return models.RouteTypeOther
	}
	switch models.RouteType(n) {
	case models.RouteTypeTram, models.RouteTypeSubway, models.RouteTypeRail, models.RouteTypeBus:
		return models.RouteType(n)
	default:
		return models.RouteTypeOther
	}
}

// indexSnapshot builds the derived lookup structures after all tables
// are consumed.
func indexSnapshot(snap *models.StaticSnapshot) {
	snap.StopList = make([]models.Stop, 0, len(snap.Stops))
	for _, stop := range snap.Stops {
		snap.StopList = append(snap.StopList, stop)
	}
	sort.Slice(snap.StopList, func(i, j int) bool {
		return snap.StopList[i].ID < snap.StopList[j].ID
	})

	for id, trip := range snap.Trips {
		snap.TripsByRoute[trip.RouteID] = append(snap.TripsByRoute[trip.RouteID], id)
	}
	for routeID := range snap.TripsByRoute {
		sort.Strings(snap.TripsByRoute[routeID])
	}
	for tripID := range snap.StopTimesByTrip {
		sts := snap.StopTimesByTrip[tripID]
		sort.Slice(sts, func(i, j int) bool {
			return sts[i].StopSequence < sts[j].StopSequence
		})
	}
}
