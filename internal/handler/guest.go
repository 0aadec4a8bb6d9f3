package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/invitely/internal/auth"
	"github.com/dukerupert/invitely/internal/dispatch"
	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/store"
)

type GuestHandler struct {
	events     *store.EventStore
	guests     *store.GuestStore
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

func NewGuestHandler(es *store.EventStore, gs *store.GuestStore, d *dispatch.Dispatcher, logger *slog.Logger) *GuestHandler {
	return &GuestHandler{events: es, guests: gs, dispatcher: d, logger: logger}
}

type guestRequest struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
	Notes string  `json:"notes" validate:"max=2000"`
}

func decodeGuest(w http.ResponseWriter, r *http.Request) (guestRequest, bool) {
	var req guestRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	req.Email = trimmedPtr(req.Email)
	if req.Email != nil {
		lower := strings.ToLower(*req.Email)
		req.Email = &lower
	}
	req.Phone = trimmedPtr(req.Phone)
	req.Notes = strings.TrimSpace(req.Notes)
	return req, true
}

// List handles GET /api/events/{id}/guests
func (h *GuestHandler) List(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	guests, err := h.guests.ListByEvent(event.ID)
	if err != nil {
		h.logger.Error("list guests", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list guests")
		return
	}
	if guests == nil {
		guests = []model.Guest{}
	}
	writeJSON(w, http.StatusOK, guests)
}

// Create handles POST /api/events/{id}/guests
func (h *GuestHandler) Create(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	req, ok := decodeGuest(w, r)
	if !ok {
		return
	}

	guest, err := h.guests.Create(event.ID, req.Name, req.Email, req.Phone, req.Notes)
	if err != nil {
		h.logger.Error("create guest", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create guest")
		return
	}
	writeJSON(w, http.StatusCreated, guest)
}

// Update handles PUT /api/events/{id}/guests/{guest_id}
func (h *GuestHandler) Update(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	guestID, err := parsePathID(r, "guest_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guest id")
		return
	}
	req, ok := decodeGuest(w, r)
	if !ok {
		return
	}

	guest, err := h.guests.Update(guestID, event.ID, req.Name, req.Email, req.Phone, req.Notes)
	if err != nil {
		h.logger.Error("update guest", "guest_id", guestID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update guest")
		return
	}
	if guest == nil {
		writeError(w, http.StatusNotFound, "guest not found")
		return
	}
	writeJSON(w, http.StatusOK, guest)
}

// Delete handles DELETE /api/events/{id}/guests/{guest_id}
func (h *GuestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	guestID, err := parsePathID(r, "guest_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guest id")
		return
	}

	deleted, err := h.guests.Delete(guestID, event.ID)
	if err != nil {
		h.logger.Error("delete guest", "guest_id", guestID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete guest")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "guest not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dispatchStatus maps dispatcher errors onto HTTP statuses.
func dispatchStatus(err error) (int, string) {
	switch {
	case errors.Is(err, dispatch.ErrEventNotFound):
		return http.StatusNotFound, "event not found"
	case errors.Is(err, dispatch.ErrEventNotPublished):
		return http.StatusBadRequest, "event must be published first"
	case errors.Is(err, dispatch.ErrRateLimited):
		return http.StatusTooManyRequests, dispatch.ErrRateLimited.Error()
	case errors.Is(err, dispatch.ErrNoChannels):
		return http.StatusBadRequest, "select at least one channel"
	}
	return http.StatusInternalServerError, "failed to send"
}

func (h *GuestHandler) writeDispatchError(w http.ResponseWriter, eventID int64, err error) {
	status, msg := dispatchStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("dispatch", "event_id", eventID, "error", err)
	}
	writeError(w, status, msg)
}

// SendInvitations handles POST /api/events/{id}/invitations/send
func (h *GuestHandler) SendInvitations(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	result, err := h.dispatcher.SendInvitations(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.writeDispatchError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SendReminders handles POST /api/events/{id}/reminders/send
func (h *GuestHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	result, err := h.dispatcher.SendReminders(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.writeDispatchError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
