package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/invitely/internal/backup"
	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/store"
)

// Backups runs and reports database snapshots.
type Backups interface {
	RunNow(ctx context.Context) (string, error)
	Status() backup.Status
}

type AdminHandler struct {
	events  *store.EventStore
	admins  *store.AdminUserStore
	backups Backups
	logger  *slog.Logger
}

// NewAdminHandler creates the admin handler. backups may be nil.
func NewAdminHandler(es *store.EventStore, as *store.AdminUserStore, backups Backups, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{events: es, admins: as, backups: backups, logger: logger}
}

// ListEvents handles GET /api/admin/events
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListAll()
	if err != nil {
		h.logger.Error("list all events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ListAdmins handles GET /api/admin/admin-users
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.List()
	if err != nil {
		h.logger.Error("list admins", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list admins")
		return
	}
	if admins == nil {
		admins = []model.AdminUser{}
	}
	writeJSON(w, http.StatusOK, admins)
}

// AddAdmin handles POST /api/admin/admin-users
func (h *AdminHandler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	admin, err := h.admins.Create(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("create admin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add admin")
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

// BackupStatus handles GET /api/admin/backups
func (h *AdminHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeJSON(w, http.StatusOK, backup.Status{State: backup.StateDisabled})
		return
	}
	writeJSON(w, http.StatusOK, h.backups.Status())
}

// RunBackup handles POST /api/admin/backups
func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}

	key, err := h.backups.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}
