package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/invitely/internal/database"
	"github.com/dukerupert/invitely/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedEvent creates a host user and a draft event owned by them.
func seedEvent(t *testing.T, db *sql.DB) (userID int64, event *model.Event) {
	t.Helper()
	u, err := NewUserStore(db).FindOrCreate(model.Identifier{Method: model.MethodEmail, Value: "host@example.com"})
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	e, err := NewEventStore(db).Create(u.ID, model.EventFields{Title: "Garden Party"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return u.ID, e
}

func strPtr(s string) *string { return &s }
