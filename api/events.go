package api

import (
	"fmt"
	"net/http"

	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/notify"
)

// EventHandler streams the caller's push notifications over SSE.
//
// Each notification becomes one SSE event: the event name is the
// notification's event name (e.g. "MessageContent") and the data line is
// the JSON payload. Delivery is best-effort: events emitted while no
// stream is open are lost, and clients resynchronize through the
// conditional fetch endpoints.
type EventHandler struct {
	bus    *notify.Bus
	logger log.Logger
}

// NewEventHandler creates a new event stream handler.
func NewEventHandler(bus *notify.Bus, logger log.Logger) *EventHandler {
	return &EventHandler{bus: bus, logger: logger}
}

// RegisterRoutes registers the event stream route on the given mux.
func (h *EventHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/events", h.stream)
}

// stream is the SSE endpoint. It subscribes to the caller's topic and
// relays events until the client disconnects.
func (h *EventHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	owner := userID(r)
	ctx := r.Context()

	messages, err := h.bus.Subscribe(ctx, owner)
	if err != nil {
		h.logger.Error("failed to subscribe", "error", err, "user", owner)
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}

	h.logger.Info("event stream started", "user", owner)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for msg := range messages {
		event := msg.Metadata.Get(notify.MetadataEvent)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, msg.Payload)
		flusher.Flush()
		msg.Ack()
	}

	h.logger.Info("event stream closed", "user", owner)
}
