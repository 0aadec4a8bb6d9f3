package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/invitely/internal/auth"
	"github.com/dukerupert/invitely/internal/storage"
	"github.com/dukerupert/invitely/internal/store"
)

const maxDesignSize = 10 << 20

type DesignHandler struct {
	events  *store.EventStore
	storage *storage.Store
	logger  *slog.Logger
}

func NewDesignHandler(es *store.EventStore, st *storage.Store, logger *slog.Logger) *DesignHandler {
	return &DesignHandler{events: es, storage: st, logger: logger}
}

// Upload handles POST /api/events/{id}/design
func (h *DesignHandler) Upload(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDesignSize+1<<20)
	file, header, err := r.FormFile("design")
	if err != nil {
		writeError(w, http.StatusBadRequest, "design file is required")
		return
	}
	defer file.Close()

	if header.Size > maxDesignSize {
		writeError(w, http.StatusRequestEntityTooLarge, "design must be 10 MB or smaller")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "design must be an image")
		return
	}

	url, err := h.storage.Put(r.Context(), storage.DesignKey(event.ID, header.Filename), contentType, file, header.Size)
	if err != nil {
		h.logger.Error("upload design", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to upload design")
		return
	}

	updated, err := h.events.SetDesignURL(event.ID, auth.UserID(r.Context()), url)
	if err != nil {
		h.logger.Error("set design url", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save design")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	if key, ok := h.storage.KeyFromURL(event.DesignURL); ok {
		if err := h.storage.Delete(r.Context(), key); err != nil {
			h.logger.Warn("delete old design", "event_id", event.ID, "key", key, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, updated)
}
