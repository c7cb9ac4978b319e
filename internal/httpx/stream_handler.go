package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-orders.git/internal/fanout"
	"github.com/go-chi/chi/v5"
)

// StreamHandler mengekspos hub fan-out sebagai endpoint SSE. Tiap koneksi
// otomatis subscribe channel privat user-nya; query ?shop=ID minta ikut
// channel toko (ditolak 403 kalau bukan pemiliknya).
type StreamHandler struct {
	Hub *fanout.Hub
}

func (h *StreamHandler) Register(r *chi.Mux) {
	r.Get("/events", h.stream)
}

func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	sub := h.Hub.Connect(actor.ID)
	defer h.Hub.Disconnect(sub)

	if shopID := r.URL.Query().Get("shop"); shopID != "" {
		if err := h.Hub.JoinShop(r.Context(), sub, shopID); err != nil {
			if errors.Is(err, fanout.ErrForbiddenChannel) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
			} else {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			// comment line = keep-alive, diabaikan client SSE
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
