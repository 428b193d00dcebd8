package restapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"transitboard.app/internal/models"
	"transitboard.app/internal/transit"
)

type nearbyResponse struct {
	Stops []models.StopResult `json:"stops"`
}

func (api *RestAPI) nearbyHandler(w http.ResponseWriter, r *http.Request) {
	queryParams := r.URL.Query()

	fieldErrors := make(map[string][]string)
	lat := parseRequiredFloat(queryParams, "lat", fieldErrors)
	lon := parseRequiredFloat(queryParams, "lon", fieldErrors)
	radius := parseOptionalFloat(queryParams, "radius", fieldErrors)
	maxResults := parseOptionalInt(queryParams, "maxResults", fieldErrors)

	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	stops, err := api.Nearby.FindNearby(r.Context(), transit.Query{
		Lat:        lat,
		Lon:        lon,
		RadiusKm:   radius,
		MaxResults: maxResults,
	})
	if err != nil {
		var coordErr *transit.InvalidCoordinateError
		if errors.As(err, &coordErr) {
			api.validationErrorResponse(w, r, map[string][]string{
				"lat,lon": {coordErr.Error()},
			})
			return
		}
		// Feed fetch and parse failures both surface as a 500; the
		// distinction only matters in the logs.
		api.serverErrorResponse(w, r, err)
		return
	}

	if stops == nil {
		stops = []models.StopResult{}
	}
	api.sendResponse(w, r, nearbyResponse{Stops: stops})
}

// parseRequiredFloat rejects a missing or non-numeric parameter. A
// missing coordinate is a client error, never defaulted.
func parseRequiredFloat(params url.Values, key string, fieldErrors map[string][]string) float64 {
	val := params.Get(key)
	if val == "" {
		fieldErrors[key] = append(fieldErrors[key], "missing required parameter "+strconv.Quote(key))
		return 0
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		fieldErrors[key] = append(fieldErrors[key], "invalid value for parameter "+strconv.Quote(key))
		return 0
	}
	return f
}

func parseOptionalFloat(params url.Values, key string, fieldErrors map[string][]string) float64 {
	val := params.Get(key)
	if val == "" {
		return 0
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 {
		fieldErrors[key] = append(fieldErrors[key], "invalid value for parameter "+strconv.Quote(key))
		return 0
	}
	return f
}

func parseOptionalInt(params url.Values, key string, fieldErrors map[string][]string) int {
	val := params.Get(key)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		fieldErrors[key] = append(fieldErrors[key], "invalid value for parameter "+strconv.Quote(key))
		return 0
	}
	return n
}
