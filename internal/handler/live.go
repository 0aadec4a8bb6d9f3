package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/invitely/internal/store"
	"github.com/dukerupert/invitely/internal/websocket"
)

type LiveHandler struct {
	events *store.EventStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewLiveHandler(es *store.EventStore, hub *websocket.Hub, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{events: es, hub: hub, logger: logger}
}

// Serve handles GET /ws/events/{id}. Only the event owner may subscribe.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	h.hub.Serve(w, r, event.ID)
}
