package restapi

import (
	"transitboard.app/internal/app"
)

type RestAPI struct {
	*app.Application
}

// NewRestAPI creates a new RestAPI instance wrapping the application's
// shared dependencies.
func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{Application: app}
}
