package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/store"
	"github.com/dukerupert/invitely/internal/websocket"
)

type SignupHandler struct {
	events  *store.EventStore
	signups *store.SignupStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewSignupHandler(es *store.EventStore, ss *store.SignupStore, hub *websocket.Hub, logger *slog.Logger) *SignupHandler {
	return &SignupHandler{events: es, signups: ss, hub: hub, logger: logger}
}

func (h *SignupHandler) writeItems(w http.ResponseWriter, eventID int64) {
	items, err := h.signups.ListItems(eventID)
	if err != nil {
		h.logger.Error("list signup items", "event_id", eventID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.SignupItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// List handles GET /api/events/{id}/signup-items
func (h *SignupHandler) List(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	h.writeItems(w, event.ID)
}

// Create handles POST /api/events/{id}/signup-items
func (h *SignupHandler) Create(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	var req struct {
		Name           string `json:"name" validate:"required,max=200"`
		Description    string `json:"description" validate:"max=1000"`
		QuantityNeeded int    `json:"quantity_needed" validate:"omitempty,min=1,max=1000"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.QuantityNeeded == 0 {
		req.QuantityNeeded = 1
	}

	item, err := h.signups.CreateItem(event.ID, name, strings.TrimSpace(req.Description), req.QuantityNeeded)
	if err != nil {
		h.logger.Error("create signup item", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Delete handles DELETE /api/events/{id}/signup-items/{item_id}
func (h *SignupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	itemID, err := parsePathID(r, "item_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	deleted, err := h.signups.DeleteItem(itemID, event.ID)
	if err != nil {
		h.logger.Error("delete signup item", "item_id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublicList handles GET /api/public/events/{slug}/signup-items
func (h *SignupHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	event, ok := publicEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	h.writeItems(w, event.ID)
}

// Claim handles POST /api/public/events/{slug}/signup-items/{item_id}/claims
func (h *SignupHandler) Claim(w http.ResponseWriter, r *http.Request) {
	event, ok := publicEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	itemID, err := parsePathID(r, "item_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req struct {
		Name     string `json:"name" validate:"required,max=100"`
		Quantity int    `json:"quantity" validate:"omitempty,min=1,max=1000"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.signups.GetItem(itemID, event.ID)
	if err != nil {
		h.logger.Error("get signup item", "item_id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to claim item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	claim, err := h.signups.Claim(item.ID, name, req.Quantity)
	if errors.Is(err, store.ErrSignupItemFull) {
		writeError(w, http.StatusConflict, "not enough left to claim")
		return
	}
	if err != nil {
		h.logger.Error("claim signup item", "item_id", item.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to claim item")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(event.ID, websocket.NewMessage("signup_claim", "created", claim.ID, map[string]any{
			"item_id":  item.ID,
			"quantity": claim.Quantity,
		}))
	}
	writeJSON(w, http.StatusCreated, claim)
}
