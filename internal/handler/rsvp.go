package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/push"
	"github.com/dukerupert/invitely/internal/store"
	"github.com/dukerupert/invitely/internal/websocket"
)

type RSVPHandler struct {
	events    *store.EventStore
	guests    *store.GuestStore
	fields    *store.RSVPFieldStore
	responses *store.RSVPResponseStore
	hub       *websocket.Hub
	notifier  Notifier
	logger    *slog.Logger
}

// NewRSVPHandler creates the RSVP handler. notifier may be nil when web push
// is not configured.
func NewRSVPHandler(es *store.EventStore, gs *store.GuestStore, fs *store.RSVPFieldStore, rs *store.RSVPResponseStore, hub *websocket.Hub, notifier Notifier, logger *slog.Logger) *RSVPHandler {
	return &RSVPHandler{
		events:    es,
		guests:    gs,
		fields:    fs,
		responses: rs,
		hub:       hub,
		notifier:  notifier,
		logger:    logger,
	}
}

func (h *RSVPHandler) listFields(eventID int64) ([]model.RSVPField, error) {
	fields, err := h.fields.ListByEvent(eventID)
	if fields == nil {
		fields = []model.RSVPField{}
	}
	return fields, err
}

// ListFields handles GET /api/events/{id}/rsvp-fields
func (h *RSVPHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	fields, err := h.listFields(event.ID)
	if err != nil {
		h.logger.Error("list rsvp fields", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list fields")
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

// CreateField handles POST /api/events/{id}/rsvp-fields
func (h *RSVPHandler) CreateField(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	var req struct {
		Label     string   `json:"label" validate:"required,max=200"`
		FieldType string   `json:"field_type" validate:"required,oneof=text number select checkbox"`
		Options   []string `json:"options" validate:"max=50,dive,max=200"`
		Required  bool     `json:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	var options []string
	if req.FieldType == model.FieldSelect {
		for _, o := range req.Options {
			if o = strings.TrimSpace(o); o != "" && !slices.Contains(options, o) {
				options = append(options, o)
			}
		}
		if len(options) == 0 {
			writeError(w, http.StatusBadRequest, "select fields need at least one option")
			return
		}
	}

	field, err := h.fields.Create(event.ID, label, req.FieldType, options, req.Required)
	if err != nil {
		h.logger.Error("create rsvp field", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create field")
		return
	}
	writeJSON(w, http.StatusCreated, field)
}

// DeleteField handles DELETE /api/events/{id}/rsvp-fields/{field_id}
func (h *RSVPHandler) DeleteField(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	fieldID, err := parsePathID(r, "field_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid field id")
		return
	}

	deleted, err := h.fields.Delete(fieldID, event.ID)
	if err != nil {
		h.logger.Error("delete rsvp field", "field_id", fieldID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete field")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "field not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListResponses handles GET /api/events/{id}/responses
func (h *RSVPHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	responses, err := h.responses.ListByEvent(event.ID)
	if err != nil {
		h.logger.Error("list rsvp responses", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list responses")
		return
	}
	summary, err := h.responses.Summary(event.ID)
	if err != nil {
		h.logger.Error("rsvp summary", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list responses")
		return
	}
	if responses == nil {
		responses = []model.RSVPResponse{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"responses": responses,
		"summary":   summary,
	})
}

// inviteGuest resolves the {token} path value to a guest of a published event.
func (h *RSVPHandler) inviteGuest(w http.ResponseWriter, r *http.Request) (*model.Guest, *model.Event, bool) {
	token := r.PathValue("token")
	guest, err := h.guests.GetByInviteToken(token)
	if err != nil {
		h.logger.Error("get guest by token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load invitation")
		return nil, nil, false
	}
	if guest == nil {
		writeError(w, http.StatusNotFound, "invitation not found")
		return nil, nil, false
	}

	event, err := h.events.GetByID(guest.EventID)
	if err != nil {
		h.logger.Error("get event", "event_id", guest.EventID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load invitation")
		return nil, nil, false
	}
	if event == nil || !event.Published() {
		writeError(w, http.StatusNotFound, "invitation not found")
		return nil, nil, false
	}
	return guest, event, true
}

// GetInvite handles GET /api/invite/{token}
func (h *RSVPHandler) GetInvite(w http.ResponseWriter, r *http.Request) {
	guest, event, ok := h.inviteGuest(w, r)
	if !ok {
		return
	}

	fields, err := h.listFields(event.ID)
	if err != nil {
		h.logger.Error("list rsvp fields", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load invitation")
		return
	}
	existing, err := h.responses.GetByGuest(guest.ID)
	if err != nil {
		h.logger.Error("get rsvp response", "guest_id", guest.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load invitation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"guest":    map[string]any{"id": guest.ID, "name": guest.Name},
		"event":    event,
		"fields":   fields,
		"response": existing,
	})
}

type rsvpRequest struct {
	Name      string            `json:"name" validate:"max=200"`
	Email     string            `json:"email" validate:"omitempty,email"`
	Status    string            `json:"status" validate:"required,oneof=attending maybe declined"`
	Headcount *int              `json:"headcount" validate:"omitempty,min=0,max=50"`
	Answers   map[string]string `json:"answers"`
}

func (req rsvpRequest) headcount() int {
	if req.Headcount != nil {
		return *req.Headcount
	}
	if req.Status == model.RSVPDeclined {
		return 0
	}
	return 1
}

// validateAnswers checks answers against the event's fields, keyed by field
// id. Unknown keys and blank values are dropped.
func validateAnswers(fields []model.RSVPField, answers map[string]string) (map[string]string, error) {
	clean := make(map[string]string, len(fields))
	for _, f := range fields {
		key := strconv.FormatInt(f.ID, 10)
		v := strings.TrimSpace(answers[key])
		if v == "" {
			if f.Required {
				return nil, fmt.Errorf("%s is required", f.Label)
			}
			continue
		}

		switch f.FieldType {
		case model.FieldNumber:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("%s must be a number", f.Label)
			}
		case model.FieldSelect:
			if !slices.Contains(f.Options, v) {
				return nil, fmt.Errorf("%s must be one of: %s", f.Label, strings.Join(f.Options, ", "))
			}
		case model.FieldCheckbox:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s must be true or false", f.Label)
			}
			if !b && f.Required {
				return nil, fmt.Errorf("%s is required", f.Label)
			}
			v = strconv.FormatBool(b)
		case model.FieldText:
			if len(v) > 2000 {
				return nil, fmt.Errorf("%s is too long", f.Label)
			}
		}
		clean[key] = v
	}
	return clean, nil
}

// save validates and stores a response, then tells the host about it.
func (h *RSVPHandler) save(w http.ResponseWriter, event *model.Event, resp model.RSVPResponse, answers map[string]string, action string) {
	fields, err := h.listFields(event.ID)
	if err != nil {
		h.logger.Error("list rsvp fields", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save response")
		return
	}
	resp.Answers, err = validateAnswers(fields, answers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.responses.Save(resp)
	if err != nil {
		h.logger.Error("save rsvp response", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save response")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(event.ID, websocket.NewMessage("rsvp", action, saved.ID, map[string]any{
			"name":      saved.Name,
			"status":    saved.Status,
			"headcount": saved.Headcount,
		}))
	}
	if h.notifier != nil {
		h.notifier.Notify(event.UserID, push.Payload{
			Title: event.Title,
			Body:  fmt.Sprintf("%s RSVP'd %s", saved.Name, saved.Status),
			URL:   fmt.Sprintf("/events/%d", event.ID),
			Tag:   fmt.Sprintf("rsvp-%d", event.ID),
		})
	}

	status := http.StatusOK
	if action == "created" {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

// SubmitInvite handles POST /api/invite/{token}/rsvp
func (h *RSVPHandler) SubmitInvite(w http.ResponseWriter, r *http.Request) {
	guest, event, ok := h.inviteGuest(w, r)
	if !ok {
		return
	}
	var req rsvpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	existing, err := h.responses.GetByGuest(guest.ID)
	if err != nil {
		h.logger.Error("get rsvp response", "guest_id", guest.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save response")
		return
	}
	action := "created"
	if existing != nil {
		action = "updated"
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = guest.Name
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" {
		addr = guest.EmailAddr()
	}

	h.save(w, event, model.RSVPResponse{
		EventID:   event.ID,
		GuestID:   &guest.ID,
		Name:      name,
		Email:     addr,
		Status:    req.Status,
		Headcount: req.headcount(),
	}, req.Answers, action)
}

// GetPublicEvent handles GET /api/public/events/{slug}
func (h *RSVPHandler) GetPublicEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := publicEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	fields, err := h.listFields(event.ID)
	if err != nil {
		h.logger.Error("list rsvp fields", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event":  event,
		"fields": fields,
	})
}

// SubmitPublic handles POST /api/public/events/{slug}/rsvp
func (h *RSVPHandler) SubmitPublic(w http.ResponseWriter, r *http.Request) {
	event, ok := publicEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	var req rsvpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	h.save(w, event, model.RSVPResponse{
		EventID:   event.ID,
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Status:    req.Status,
		Headcount: req.headcount(),
	}, req.Answers, "created")
}
