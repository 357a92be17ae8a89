package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"resource-pool-backend/internal/engine"
	"resource-pool-backend/internal/intent"
	"resource-pool-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine     *engine.Engine
	dispatcher *intent.Dispatcher
	store      store.Store
	webpush    *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(e *engine.Engine, d *intent.Dispatcher, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		engine:     e,
		dispatcher: d,
		store:      s,
		webpush:    webpushOptions,
	}
}
