package restapi

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status          string `json:"status"`
	StaticFetchedAt string `json:"staticFetchedAt,omitempty"`
	LiveFetchedAt   string `json:"liveFetchedAt,omitempty"`
}

// healthHandler reports process liveness plus the age of each feed
// cache. It never triggers a refresh.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if t := api.StaticStore.LastFetched(); !t.IsZero() {
		resp.StaticFetchedAt = t.UTC().Format(time.RFC3339)
	}
	if t := api.LiveStore.LastFetched(); !t.IsZero() {
		resp.LiveFetchedAt = t.UTC().Format(time.RFC3339)
	}
	api.sendResponse(w, r, resp)
}
