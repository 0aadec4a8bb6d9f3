package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/invitely/internal/auth"
	"github.com/dukerupert/invitely/internal/dispatch"
	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/store"
)

type AnnouncementHandler struct {
	events        *store.EventStore
	announcements *store.AnnouncementStore
	dispatcher    *dispatch.Dispatcher
	logger        *slog.Logger
}

func NewAnnouncementHandler(es *store.EventStore, as *store.AnnouncementStore, d *dispatch.Dispatcher, logger *slog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{events: es, announcements: as, dispatcher: d, logger: logger}
}

// List handles GET /api/events/{id}/announcements
func (h *AnnouncementHandler) List(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	list, err := h.announcements.ListByEvent(event.ID)
	if err != nil {
		h.logger.Error("list announcements", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list announcements")
		return
	}
	if list == nil {
		list = []model.Announcement{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/events/{id}/announcements
func (h *AnnouncementHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Subject  string   `json:"subject" validate:"required,max=200"`
		Body     string   `json:"body" validate:"required,max=5000"`
		Channels []string `json:"channels" validate:"required,min=1,dive,oneof=email sms"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.dispatcher.Announce(r.Context(), id, auth.UserID(r.Context()), dispatch.Announcement{
		Subject:  strings.TrimSpace(req.Subject),
		Body:     strings.TrimSpace(req.Body),
		Channels: req.Channels,
	})
	if err != nil {
		status, msg := dispatchStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("announce", "event_id", id, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
