package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StreamEvents отдаёт события жизненного цикла постов как SSE-поток.
// GET /api/v1/events
//
// Поток best-effort: клиент с переполненным буфером теряет события.
// Актуальное состояние постов всегда доступно через GET /posts.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		NotFound(w, "event stream is not enabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, h.logger, fmt.Errorf("response writer does not support flushing"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsub := h.events.Subscribe(32)
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(n)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
			flusher.Flush()
		}
	}
}
