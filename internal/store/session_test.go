package store

import (
	"testing"
	"time"

	"github.com/dukerupert/invitely/internal/model"
)

func TestSessionCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserStore(db)
	sessions := NewSessionStore(db)

	u, err := users.FindOrCreate(model.Identifier{Method: model.MethodPhone, Value: "+15550002222"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	eventID := int64(7)
	sess, err := sessions.Create(u.ID, model.RoleGuest, &eventID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected token")
	}
	if d := time.Until(sess.ExpiresAt); d < SessionTTL-time.Minute || d > SessionTTL {
		t.Errorf("expires in %v, want about %v", d, SessionTTL)
	}

	got, err := sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got == nil {
		t.Fatal("expected session")
	}
	if got.UserID != u.ID || got.Role != model.RoleGuest {
		t.Errorf("session = %+v", got)
	}
	if got.EventID == nil || *got.EventID != 7 {
		t.Errorf("event_id = %v, want 7", got.EventID)
	}

	if err := sessions.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSessionTokensUnique(t *testing.T) {
	db := setupTestDB(t)
	u, _ := NewUserStore(db).FindOrCreate(model.Identifier{Method: model.MethodEmail, Value: "u@example.com"})
	sessions := NewSessionStore(db)

	a, err := sessions.Create(u.ID, model.RoleGuest, nil)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := sessions.Create(u.ID, model.RoleGuest, nil)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if a.Token == b.Token {
		t.Error("tokens should differ")
	}
}

func TestSessionExpired(t *testing.T) {
	db := setupTestDB(t)
	u, _ := NewUserStore(db).FindOrCreate(model.Identifier{Method: model.MethodEmail, Value: "old@example.com"})
	sessions := NewSessionStore(db)

	sess, err := sessions.Create(u.ID, model.RoleAdmin, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Exec(`UPDATE user_sessions SET expires_at = ? WHERE id = ?`, time.Now().UTC().Add(-time.Hour), sess.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	got, err := sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expired session returned")
	}

	n, err := sessions.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestUserFindOrCreateStable(t *testing.T) {
	users := NewUserStore(setupTestDB(t))
	id := model.Identifier{Method: model.MethodEmail, Value: "same@example.com"}

	a, err := users.FindOrCreate(id)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := users.FindOrCreate(id)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("ids = %d, %d, want equal", a.ID, b.ID)
	}

	other, err := users.FindOrCreate(model.Identifier{Method: model.MethodPhone, Value: "same@example.com"})
	if err != nil {
		t.Fatalf("phone: %v", err)
	}
	if other.ID == a.ID {
		t.Error("phone identity should be a separate user")
	}
}

func TestAdminUserLookup(t *testing.T) {
	admins := NewAdminUserStore(setupTestDB(t))

	got, err := admins.GetByEmail("boss@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil before create")
	}

	if _, err := admins.Create("boss@example.com"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := admins.Create("boss@example.com"); err != nil {
		t.Fatalf("create duplicate: %v", err)
	}
	list, err := admins.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("admins = %d, want 1", len(list))
	}
}
