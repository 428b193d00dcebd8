package restapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Routes builds the HTTP handler tree: the public endpoints wrapped in
// request logging, plus the operational surfaces.
func (api *RestAPI) Routes() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/nearby", api.instrumented("/nearby", api.nearbyHandler))
	router.HandlerFunc(http.MethodGet, "/routes", api.instrumented("/routes", api.routesHandler))
	router.HandlerFunc(http.MethodGet, "/routes/:routeID", api.instrumented("/routes/:routeID", api.routeDetailHandler))
	router.HandlerFunc(http.MethodGet, "/healthz", api.instrumented("/healthz", api.healthHandler))

	if api.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", api.Metrics.Handler())
	}

	return NewRequestLoggingMiddleware(api.Logger)(router)
}

// instrumented records request duration under the registered route
// pattern. Labeling with the raw path would mint one series per route
// ID on the parameterized endpoints.
func (api *RestAPI) instrumented(pattern string, next http.HandlerFunc) http.HandlerFunc {
	if api.Metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)
		api.Metrics.RequestDuration.
			WithLabelValues(pattern, strconv.Itoa(wrapped.statusCode)).
			Observe(time.Since(start).Seconds())
	}
}
