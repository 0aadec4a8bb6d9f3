package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrNotConfigured = errors.New("backups not configured")

// ObjectStore is where encrypted snapshots are written.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Passphrase string
	Interval   time.Duration
	Keep       int
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager snapshots the database, encrypts it and uploads it on an interval.
// Snapshots taken by this process beyond Keep are deleted oldest first.
type Manager struct {
	mu      sync.Mutex
	run     sync.Mutex
	cfg     Config
	status  Status
	keys    []string
	db      *sql.DB
	objects ObjectStore
	logger  *slog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, objects ObjectStore, logger *slog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 7
	}
	m := &Manager{
		cfg:     cfg,
		db:      db,
		objects: objects,
		logger:  logger.With("component", "backup"),
		now:     time.Now,
		status:  Status{State: StateDisabled},
	}
	if m.Configured() {
		m.status.State = StateIdle
	}
	return m
}

// Configured reports whether both a destination and a passphrase are set.
func (m *Manager) Configured() bool {
	return m.objects != nil && m.cfg.Passphrase != ""
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Configured() {
		return
	}
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.status.State = StateError
	m.status.Error = err.Error()
	m.mu.Unlock()
	return err
}

// RunNow takes one snapshot and returns the object key it was stored under.
// Concurrent calls run one at a time.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	if !m.Configured() {
		return "", ErrNotConfigured
	}
	m.run.Lock()
	defer m.run.Unlock()

	prev := m.Status()
	m.setStatus(Status{State: StateRunning, LastBackup: prev.LastBackup, LastKey: prev.LastKey})

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return "", m.fail(fmt.Errorf("snapshot: %w", err))
	}
	enc, err := Encrypt(snapshot, m.cfg.Passphrase)
	if err != nil {
		return "", m.fail(fmt.Errorf("encrypt: %w", err))
	}

	at := m.now().UTC()
	key := Key(at)
	if _, err := m.objects.Put(ctx, key, "application/octet-stream", bytes.NewReader(enc), int64(len(enc))); err != nil {
		return "", m.fail(fmt.Errorf("upload: %w", err))
	}

	m.setStatus(Status{State: StateIdle, LastBackup: &at, LastKey: key})
	m.logger.Info("backup uploaded", "key", key, "bytes", len(enc))
	m.prune(ctx, key)
	return key, nil
}

// Key is the object key for a snapshot taken at t.
func Key(t time.Time) string {
	return fmt.Sprintf("backups/invitely-%s.db.enc", t.UTC().Format("2006-01-02T150405Z"))
}

// snapshot writes a consistent copy of the database with VACUUM INTO and
// returns its bytes.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "invitely-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (m *Manager) prune(ctx context.Context, key string) {
	m.keys = append(m.keys, key)
	for len(m.keys) > m.cfg.Keep {
		old := m.keys[0]
		m.keys = m.keys[1:]
		if err := m.objects.Delete(ctx, old); err != nil {
			m.logger.Warn("delete old backup", "key", old, "error", err)
		}
	}
}
