package transit

import (
	"sort"

	"transitboard.app/internal/models"
)

// RouteSummary is one route with its aggregate counts for the route
// listing endpoint.
type RouteSummary struct {
	models.Route
	TripCount int `json:"tripCount"`
	StopCount int `json:"stopCount"`
}

// RouteSummaries lists every route in the snapshot with the number of
// trips it runs and the number of distinct stops those trips visit,
// ordered by route ID.
func RouteSummaries(snap *models.StaticSnapshot) []RouteSummary {
	summaries := make([]RouteSummary, 0, len(snap.Routes))
	for _, route := range snap.Routes {
		tripIDs := snap.TripsByRoute[route.ID]
		stopSet := make(map[string]struct{})
		for _, tripID := range tripIDs {
			for _, st := range snap.StopTimesByTrip[tripID] {
				stopSet[st.StopID] = struct{}{}
			}
		}
		summaries = append(summaries, RouteSummary{
			Route:     route,
			TripCount: len(tripIDs),
			StopCount: len(stopSet),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})
	return summaries
}

// RouteStop is one entry in a route's ordered stop sequence.
type RouteStop struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Sequence int     `json:"sequence"`
}

// RouteDirection is the stop sequence of the representative trip for
// one direction of travel.
type RouteDirection struct {
	DirectionID int         `json:"directionId"`
	Headsign    string      `json:"headsign"`
	Stops       []RouteStop `json:"stops"`
}

// RouteDetail is the expanded view of a single route.
type RouteDetail struct {
	models.Route
	Directions []RouteDirection `json:"directions"`
}

// DescribeRoute builds the detail view for a route. The representative
// trip for each direction is the one visiting the most stops, so short
// turnback variants do not truncate the displayed sequence. Returns
// ok=false when the route is unknown or has no trips.
func DescribeRoute(snap *models.StaticSnapshot, routeID string) (RouteDetail, bool) {
	route, exists := snap.Routes[routeID]
	if !exists {
		return RouteDetail{}, false
	}
	tripIDs := snap.TripsByRoute[routeID]
	if len(tripIDs) == 0 {
		return RouteDetail{}, false
	}

	representative := make(map[int]models.Trip)
	for _, tripID := range tripIDs {
		trip := snap.Trips[tripID]
		best, ok := representative[trip.DirectionID]
		if !ok || len(snap.StopTimesByTrip[trip.ID]) > len(snap.StopTimesByTrip[best.ID]) {
			representative[trip.DirectionID] = trip
		}
	}

	directionIDs := make([]int, 0, len(representative))
	for id := range representative {
		directionIDs = append(directionIDs, id)
	}
	sort.Ints(directionIDs)

	detail := RouteDetail{Route: route}
	for _, dirID := range directionIDs {
		trip := representative[dirID]
		dir := RouteDirection{DirectionID: dirID, Headsign: trip.Headsign}
		for _, st := range snap.StopTimesByTrip[trip.ID] {
			stop, ok := snap.Stops[st.StopID]
			if !ok {
				continue
			}
			dir.Stops = append(dir.Stops, RouteStop{
				ID:       stop.ID,
				Name:     stop.Name,
				Lat:      stop.Lat,
				Lon:      stop.Lon,
				Sequence: st.StopSequence,
			})
		}
		detail.Directions = append(detail.Directions, dir)
	}
	return detail, true
}
