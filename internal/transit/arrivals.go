package transit

import (
	"math"
	"sort"
	"time"

	"transitboard.app/internal/models"
)

const (
	// MaxArrivalsPerStop caps how many upcoming arrivals a stop reports.
	MaxArrivalsPerStop = 5

	// ArrivalWindow bounds how far ahead arrivals are reported.
	ArrivalWindow = 2 * time.Hour
)

// ResolveArrivals computes the upcoming arrivals at a stop from the
// static schedule, overlaid with any matching live predictions.
//
// Stop-times referencing a trip or route missing from the snapshot are
// skipped; upstream data is not guaranteed fully consistent. An empty
// live update list degrades the output to schedule-only, never to an
// error. Results are those strictly after now and at most two hours
// out, ordered soonest first, capped at MaxArrivalsPerStop.
func ResolveArrivals(stopID string, snap *models.StaticSnapshot, updates []models.TripUpdate, now time.Time) []models.Arrival {
	stopTimes := snap.StopTimesByStop[stopID]
	if len(stopTimes) == 0 {
		return nil
	}

	predictions := indexPredictions(updates, stopID)

	arrivals := make([]models.Arrival, 0, MaxArrivalsPerStop)
	for _, st := range stopTimes {
		trip, ok := snap.Trips[st.TripID]
		if !ok {
			continue
		}
		route, ok := snap.Routes[trip.RouteID]
		if !ok {
			continue
		}

		scheduled := st.Arrival.Materialize(now)
		arrivalAt := scheduled
		isRealtime := false
		delayMinutes := 0

		if pred, ok := predictions[st.TripID]; ok {
			if pred.Arrival != nil {
				arrivalAt = *pred.Arrival
				delayMinutes = int(math.Round(arrivalAt.Sub(scheduled).Minutes()))
				isRealtime = true
			} else if pred.Departure != nil {
				// A departure-only prediction still marks the trip as
				// live-tracked even though the arrival basis is the
				// schedule.
				isRealtime = true
			}
		}

		until := arrivalAt.Sub(now)
		if until <= 0 || until > ArrivalWindow {
			continue
		}

		minutes := int(math.Round(until.Minutes()))
		if minutes == 0 {
			// An arrival seconds away is still upcoming; report it as
			// a minute out, never 0.
			minutes = 1
		}

		arrivals = append(arrivals, models.Arrival{
			RouteID:             route.ID,
			RouteName:           route.ShortName,
			Headsign:            trip.Headsign,
			ScheduledArrival:    arrivalAt.Format("15:04"),
			MinutesUntilArrival: minutes,
			IsRealtime:          isRealtime,
			DelayMinutes:        delayMinutes,
		})
	}

	sort.Slice(arrivals, func(i, j int) bool {
		if arrivals[i].MinutesUntilArrival != arrivals[j].MinutesUntilArrival {
			return arrivals[i].MinutesUntilArrival < arrivals[j].MinutesUntilArrival
		}
		if arrivals[i].RouteID != arrivals[j].RouteID {
			return arrivals[i].RouteID < arrivals[j].RouteID
		}
		return arrivals[i].Headsign < arrivals[j].Headsign
	})

	if len(arrivals) > MaxArrivalsPerStop {
		arrivals = arrivals[:MaxArrivalsPerStop]
	}
	return arrivals
}

// indexPredictions extracts the predictions relevant to one stop,
// keyed by trip ID. Updates for other stops are ignored here rather
// than at decode time.
func indexPredictions(updates []models.TripUpdate, stopID string) map[string]models.StopPrediction {
	if len(updates) == 0 {
		return nil
	}
	preds := make(map[string]models.StopPrediction)
	for _, update := range updates {
		for _, su := range update.StopUpdates {
			if su.StopID == stopID {
				preds[update.TripID] = su
				break
			}
		}
	}
	return preds
}
