package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/invitely/internal/auth"
	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/store"
)

type EventHandler struct {
	events *store.EventStore
	logger *slog.Logger
}

func NewEventHandler(es *store.EventStore, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: es, logger: logger}
}

// ownedEvent loads the {id} event for the signed-in user. A missing or
// foreign event writes a 404.
func ownedEvent(w http.ResponseWriter, r *http.Request, events *store.EventStore, logger *slog.Logger) (*model.Event, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	event, err := events.GetForOwner(id, auth.UserID(r.Context()))
	if err != nil {
		logger.Error("get event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return event, true
}

type eventRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"max=5000"`
	StartsAt     *time.Time `json:"starts_at"`
	Location     string     `json:"location" validate:"max=500"`
	HostName     string     `json:"host_name" validate:"max=200"`
	DressCode    string     `json:"dress_code" validate:"max=200"`
	RSVPDeadline *time.Time `json:"rsvp_deadline"`
}

func (req eventRequest) fields() model.EventFields {
	return model.EventFields{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		StartsAt:     req.StartsAt,
		Location:     strings.TrimSpace(req.Location),
		HostName:     strings.TrimSpace(req.HostName),
		DressCode:    strings.TrimSpace(req.DressCode),
		RSVPDeadline: req.RSVPDeadline,
	}
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (model.EventFields, bool) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return model.EventFields{}, false
	}
	f := req.fields()
	if f.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return f, false
	}
	return f, true
}

// List handles GET /api/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListByOwner(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Create handles POST /api/events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	event, err := h.events.Create(auth.UserID(r.Context()), f)
	if err != nil {
		h.logger.Error("create event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Get handles GET /api/events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Update handles PUT /api/events/{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	f, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	event, err := h.events.Update(id, auth.UserID(r.Context()), f)
	if err != nil {
		h.logger.Error("update event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deleted, err := h.events.Delete(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("delete event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Publish handles POST /api/events/{id}/publish
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.EventStatusPublished)
}

// Unpublish handles POST /api/events/{id}/unpublish
func (h *EventHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.EventStatusDraft)
}

func (h *EventHandler) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	event, err := h.events.SetStatus(id, auth.UserID(r.Context()), status)
	if err != nil {
		h.logger.Error("set event status", "event_id", id, "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// SetPassword handles PUT /api/events/{id}/password. An empty password
// removes the gate.
func (h *EventHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Password string `json:"password" validate:"omitempty,min=4,max=72"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var hash *string
	if req.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("hash event password", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to set password")
			return
		}
		s := string(b)
		hash = &s
	}

	event, err := h.events.SetPassword(id, auth.UserID(r.Context()), hash)
	if err != nil {
		h.logger.Error("set event password", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set password")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_password": event.HasPassword()})
}
