package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/push"
	"github.com/dukerupert/invitely/internal/store"
)

// EventPasswordHeader carries the access password for gated public pages.
const EventPasswordHeader = "X-Event-Password"

// Notifier sends a web push notification to every device of a user.
type Notifier interface {
	Notify(userID int64, payload push.Payload)
}

// publicEvent loads the published {slug} event and enforces its access
// password. Drafts are reported as not found.
func publicEvent(w http.ResponseWriter, r *http.Request, events *store.EventStore, logger *slog.Logger) (*model.Event, bool) {
	slug := r.PathValue("slug")
	event, err := events.GetBySlug(slug)
	if err != nil {
		logger.Error("get event by slug", "slug", slug, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil, false
	}
	if event == nil || !event.Published() {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}

	if event.HasPassword() {
		pw := r.Header.Get(EventPasswordHeader)
		if pw == "" {
			writeError(w, http.StatusUnauthorized, "password required")
			return nil, false
		}
		if bcrypt.CompareHashAndPassword([]byte(*event.PasswordHash), []byte(pw)) != nil {
			writeError(w, http.StatusUnauthorized, "incorrect password")
			return nil, false
		}
	}
	return event, true
}
