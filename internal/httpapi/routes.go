package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/hub"
	"github.com/shuttleboard/shuttleboard/internal/store"
	"github.com/shuttleboard/shuttleboard/internal/ws"
)

func SetupRoutes(h *hub.Hub, st store.Store, log *zap.Logger, wsOpts ws.Options) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log, wsOpts))
	r.Post("/teams/{teamID}/courts", CreateCourt(st, log))
	r.Get("/teams/{teamID}/courts", ListCourts(st, log))
	return r
}
