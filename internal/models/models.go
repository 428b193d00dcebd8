package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RouteType is the GTFS route_type classification.
type RouteType int

const (
	RouteTypeTram   RouteType = 0
	RouteTypeSubway RouteType = 1
	RouteTypeRail   RouteType = 2
	RouteTypeBus    RouteType = 3
	RouteTypeOther  RouteType = 99
)

// Route is one physical transit line, keyed by ID, unique within a snapshot.
type Route struct {
	ID        string    `json:"id"`
	ShortName string    `json:"shortName"`
	LongName  string    `json:"longName"`
	Type      RouteType `json:"type"`
	Color     string    `json:"color,omitempty"`
	TextColor string    `json:"textColor,omitempty"`
}

// Trip is a single scheduled run of a route.
type Trip struct {
	ID          string `json:"id"`
	RouteID     string `json:"routeId"`
	Headsign    string `json:"headsign"`
	DirectionID int    `json:"directionId"`
}

// StopTime is one scheduled visit of a trip to a stop. This is the
// largest table in a feed and the one most frequently scanned.
type StopTime struct {
	TripID       string
	StopID       string
	Arrival      GTFSTime
	Departure    GTFSTime
	StopSequence int
}

// Stop is one physical boarding location.
type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// GTFSTime is a scheduled time expressed as an offset from the start of
// the service day. GTFS allows the hour component to exceed 24 for
// service that continues past midnight, so the offset may exceed 24h.
type GTFSTime time.Duration

// ParseGTFSTime parses an HH:MM:SS string. Hours above 24 are valid and
// roll into the following calendar day when materialized.
func ParseGTFSTime(s string) (GTFSTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("malformed hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("malformed minute in %q", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("malformed second in %q", s)
	}
	return GTFSTime(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second), nil
}

// Materialize resolves the offset against the service day containing ref.
// An offset of 25:30:00 lands at 01:30 on the day after ref's date.
func (t GTFSTime) Materialize(ref time.Time) time.Time {
	startOfDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return startOfDay.Add(time.Duration(t))
}

// StaticSnapshot is the immutable result of one static feed refresh.
// It is replaced wholesale, never mutated in place.
type StaticSnapshot struct {
	Routes map[string]Route
	Trips  map[string]Trip
	Stops  map[string]Stop

	// StopList is Stops in stable ID order, for deterministic scans.
	StopList []Stop

	StopTimesByStop map[string][]StopTime
	StopTimesByTrip map[string][]StopTime
	TripsByRoute    map[string][]string

	FetchedAt time.Time

	// Stale marks a snapshot served past its TTL because a refresh failed.
	Stale bool
}

// TripUpdate is one decoded live-feed entity, keyed by trip ID.
type TripUpdate struct {
	TripID      string
	StopUpdates []StopPrediction
}

// StopPrediction is a live arrival/departure prediction at one stop.
type StopPrediction struct {
	StopID    string
	Arrival   *time.Time
	Departure *time.Time
}

// Arrival is a resolved upcoming arrival at a stop. Computed fresh per
// request, never cached.
type Arrival struct {
	RouteID             string `json:"routeId"`
	RouteName           string `json:"routeName"`
	Headsign            string `json:"headsign"`
	ScheduledArrival    string `json:"scheduledArrival"`
	MinutesUntilArrival int    `json:"minutesUntilArrival"`
	IsRealtime          bool   `json:"isRealtime"`
	DelayMinutes        int    `json:"delayMinutes"`
}

// StopResult is one nearby stop with its resolved arrivals attached.
type StopResult struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Distance  float64   `json:"distance"`
	Arrivals  []Arrival `json:"arrivals"`
}
