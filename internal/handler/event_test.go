package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/invitely/internal/model"
)

func TestEventCRUD(t *testing.T) {
	a := setupApp(t)
	owner := a.host(t, "host@example.com")

	rec := serve(t, "POST /api/events", a.eventH.Create, "POST", "/api/events",
		map[string]any{"title": "  Summer BBQ ", "location": "Backyard"}, owner)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[model.Event](t, rec)
	if created.Title != "Summer BBQ" || created.Status != model.EventStatusDraft || created.Slug == "" {
		t.Errorf("created = %+v", created)
	}

	path := fmt.Sprintf("/api/events/%d", created.ID)
	rec = serve(t, "PUT /api/events/{id}", a.eventH.Update, "PUT", path,
		map[string]any{"title": "Winter BBQ"}, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	if got := decode[model.Event](t, rec); got.Title != "Winter BBQ" {
		t.Errorf("updated title = %q", got.Title)
	}

	rec = serve(t, "GET /api/events", a.eventH.List, "GET", "/api/events", nil, owner)
	if list := decode[[]model.Event](t, rec); len(list) != 1 {
		t.Errorf("list len = %d, want 1", len(list))
	}

	rec = serve(t, "DELETE /api/events/{id}", a.eventH.Delete, "DELETE", path, nil, owner)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = serve(t, "GET /api/events/{id}", a.eventH.Get, "GET", path, nil, owner)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestEventCreateRequiresTitle(t *testing.T) {
	a := setupApp(t)
	owner := a.host(t, "host@example.com")

	for _, body := range []any{map[string]any{}, map[string]any{"title": "   "}} {
		rec := serve(t, "POST /api/events", a.eventH.Create, "POST", "/api/events", body, owner)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestEventForeignOwnerIsNotFound(t *testing.T) {
	a := setupApp(t)
	owner := a.host(t, "host@example.com")
	other := a.host(t, "other@example.com")
	e := a.publishedEvent(t, owner)
	path := fmt.Sprintf("/api/events/%d", e.ID)

	tests := []struct {
		pattern string
		h       http.HandlerFunc
		method  string
		path    string
		body    any
	}{
		{"GET /api/events/{id}", a.eventH.Get, "GET", path, nil},
		{"PUT /api/events/{id}", a.eventH.Update, "PUT", path, map[string]any{"title": "Mine now"}},
		{"DELETE /api/events/{id}", a.eventH.Delete, "DELETE", path, nil},
		{"POST /api/events/{id}/unpublish", a.eventH.Unpublish, "POST", path + "/unpublish", nil},
		{"GET /api/events/{id}/guests", a.guestH.List, "GET", path + "/guests", nil},
	}
	for _, tt := range tests {
		rec := serve(t, tt.pattern, tt.h, tt.method, tt.path, tt.body, other)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", tt.pattern, rec.Code)
		}
	}

	got, err := a.events.GetByID(e.ID)
	if err != nil || got == nil || got.Title != e.Title || !got.Published() {
		t.Errorf("event changed by another user: %+v, %v", got, err)
	}
}

func TestPublishUnpublish(t *testing.T) {
	a := setupApp(t)
	owner := a.host(t, "host@example.com")
	e, err := a.events.Create(owner, model.EventFields{Title: "Draft"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	path := fmt.Sprintf("/api/events/%d", e.ID)

	rec := serve(t, "POST /api/events/{id}/publish", a.eventH.Publish, "POST", path+"/publish", nil, owner)
	if got := decode[model.Event](t, rec); got.Status != model.EventStatusPublished {
		t.Errorf("status after publish = %q", got.Status)
	}
	rec = serve(t, "POST /api/events/{id}/unpublish", a.eventH.Unpublish, "POST", path+"/unpublish", nil, owner)
	if got := decode[model.Event](t, rec); got.Status != model.EventStatusDraft {
		t.Errorf("status after unpublish = %q", got.Status)
	}
}

func TestPublicEventPassword(t *testing.T) {
	a := setupApp(t)
	owner := a.host(t, "host@example.com")
	e := a.publishedEvent(t, owner)
	path := fmt.Sprintf("/api/events/%d/password", e.ID)

	rec := serve(t, "PUT /api/events/{id}/password", a.eventH.SetPassword, "PUT", path,
		map[string]any{"password": "open-sesame"}, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("set password status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]bool](t, rec); !got["has_password"] {
		t.Fatal("has_password should be true")
	}

	get := func(password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/public/events/"+e.Slug, nil)
		if password != "" {
			req.Header.Set(EventPasswordHeader, password)
		}
		return serveRequest("GET /api/public/events/{slug}", a.rsvpH.GetPublicEvent, req)
	}

	rec = get("")
	if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "password required" {
		t.Errorf("no password: status = %d", rec.Code)
	}
	rec = get("wrong")
	if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "incorrect password" {
		t.Errorf("wrong password: status = %d", rec.Code)
	}
	if rec = get("open-sesame"); rec.Code != http.StatusOK {
		t.Errorf("right password: status = %d", rec.Code)
	}

	// Clearing the password opens the page again.
	serve(t, "PUT /api/events/{id}/password", a.eventH.SetPassword, "PUT", path,
		map[string]any{"password": ""}, owner)
	if rec = get(""); rec.Code != http.StatusOK {
		t.Errorf("after clearing: status = %d", rec.Code)
	}
}

func TestPublicEventHidesDrafts(t *testing.T) {
	a := setupApp(t)
	owner := a.host(t, "host@example.com")
	e, err := a.events.Create(owner, model.EventFields{Title: "Secret"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	rec := serve(t, "GET /api/public/events/{slug}", a.rsvpH.GetPublicEvent, "GET", "/api/public/events/"+e.Slug, nil, 0)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
