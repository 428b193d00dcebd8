package restapi

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"transitboard.app/internal/transit"
)

type routesResponse struct {
	Routes []transit.RouteSummary `json:"routes"`
}

func (api *RestAPI) routesHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := api.StaticStore.GetSnapshot(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, routesResponse{Routes: transit.RouteSummaries(snap)})
}

func (api *RestAPI) routeDetailHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	routeID := strings.TrimSpace(params.ByName("routeID"))
	if routeID == "" {
		api.sendNotFound(w, r)
		return
	}

	snap, err := api.StaticStore.GetSnapshot(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	detail, ok := transit.DescribeRoute(snap, routeID)
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	api.sendResponse(w, r, detail)
}
