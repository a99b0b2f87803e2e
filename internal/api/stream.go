package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/inventar/internal/live"
)

// keepAlive is the interval between SSE comment lines on an idle stream.
var keepAlive = 30 * time.Second

// Stream handles GET /api/items/stream.
func (h *ItemsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Service.AllItems().Subscribe(r.Context())
	if err != nil {
		slog.Error("subscribing to items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer sub.Close()
	serveEvents(w, r, "items", sub)
}

// StreamOne handles GET /api/items/{id}/stream. A null payload means the
// item does not exist.
func (h *ItemsHandler) StreamOne(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	sub, err := h.Service.RetrieveItem(id).Subscribe(r.Context())
	if err != nil {
		slog.Error("subscribing to item", "error", err, "item_id", id)
		jsonError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer sub.Close()
	serveEvents(w, r, "item", sub)
}

// serveEvents writes every snapshot delivered by sub as a server-sent event
// until the client goes away or the subscription ends.
func serveEvents[T any](w http.ResponseWriter, r *http.Request, event string, sub *live.Subscription[T]) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Error("streaming unsupported", "error", err)
		return
	}

	logger := slog.With("subscription", sub.ID(), "request_id", RequestID(r.Context()))
	logger.Debug("stream opened", "event", event)
	defer logger.Debug("stream closed", "event", event)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	var seq int
	for {
		select {
		case snapshot, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					logger.Error("live query failed", "error", err)
					fmt.Fprintf(w, "event: error\ndata: %q\n\n", "live query failed")
					rc.Flush()
				}
				return
			}
			data, err := json.Marshal(snapshot)
			if err != nil {
				logger.Error("encoding snapshot", "error", err)
				return
			}
			seq++
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
