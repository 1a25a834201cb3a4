package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"boardsync/internal/api"
	"boardsync/internal/metrics"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(metrics.Middleware)

	r.Get("/api/v1/healthz", h.Health)
	r.Get("/api/v1/readyz", h.Ready)
	r.Post("/api/v1/rooms/join", h.JoinRoomHTTP)
	r.Get("/api/v1/rooms/{roomID}", h.RoomInfoHTTP)

	r.Get("/ws/board", h.BoardWS)

	r.Handle("/metrics", metrics.Handler())

	return r
}
