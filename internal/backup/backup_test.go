package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/invitely/internal/database"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerDisabledWithoutPassphrase(t *testing.T) {
	m := NewManager(Config{}, nil, newMemStore(), discardLogger())
	if m.Configured() {
		t.Fatal("manager without passphrase should not be configured")
	}
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("RunNow err = %v, want ErrNotConfigured", err)
	}

	// Start is a no-op and Stop must not block.
	m.Start(context.Background())
	m.Stop()
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`INSERT INTO admin_users (email) VALUES ('root@example.com')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	objects := newMemStore()
	m := NewManager(Config{Passphrase: "pw"}, db, objects, discardLogger())
	m.now = func() time.Time { return time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC) }

	key, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if key != "backups/invitely-2026-05-01T030000Z.db.enc" {
		t.Errorf("key = %q", key)
	}

	plain, err := Decrypt(objects.objects[key], "pw")
	if err != nil {
		t.Fatalf("decrypt uploaded snapshot: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("SQLite format 3\x00")) {
		t.Error("snapshot is not a SQLite database")
	}
	if !bytes.Contains(plain, []byte("root@example.com")) {
		t.Error("snapshot should contain seeded rows")
	}

	st := m.Status()
	if st.State != StateIdle || st.LastKey != key || st.LastBackup == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestRunNowPrunesOldSnapshots(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	objects := newMemStore()
	m := NewManager(Config{Passphrase: "pw", Keep: 2}, db, objects, discardLogger())
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	var keys []string
	for range 3 {
		key, err := m.RunNow(context.Background())
		if err != nil {
			t.Fatalf("RunNow: %v", err)
		}
		keys = append(keys, key)
		at = at.Add(time.Hour)
	}

	if len(objects.objects) != 2 {
		t.Errorf("stored objects = %d, want 2", len(objects.objects))
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != keys[0] {
		t.Errorf("deleted = %v, want [%s]", objects.deleted, keys[0])
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	objects := newMemStore()
	objects.putErr = errors.New("bucket gone")
	m := NewManager(Config{Passphrase: "pw"}, db, objects, discardLogger())

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	st := m.Status()
	if st.State != StateError || st.Error == "" {
		t.Errorf("status = %+v, want error state", st)
	}
}
