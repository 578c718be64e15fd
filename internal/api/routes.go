package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Posts
	mux.Handle("GET /api/v1/posts", chain(http.HandlerFunc(h.ListPosts)))
	mux.Handle("POST /api/v1/posts", chain(http.HandlerFunc(h.CreatePost)))
	mux.Handle("GET /api/v1/posts/{id}", chain(http.HandlerFunc(h.GetPost)))
	mux.Handle("PUT /api/v1/posts/{id}", chain(http.HandlerFunc(h.UpdatePost)))
	mux.Handle("DELETE /api/v1/posts/{id}", chain(http.HandlerFunc(h.DeletePost)))

	// Scheduler
	mux.Handle("POST /api/v1/scheduler/check", chain(http.HandlerFunc(h.CheckScheduled)))

	// Events (SSE)
	mux.Handle("GET /api/v1/events", chain(http.HandlerFunc(h.StreamEvents)))
}
