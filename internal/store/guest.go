package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/invitely/internal/model"
)

type GuestStore struct {
	db *sql.DB
}

func NewGuestStore(db *sql.DB) *GuestStore {
	return &GuestStore{db: db}
}

func scanGuest(scanner rowScanner) (*model.Guest, error) {
	var g model.Guest
	var email, phone, token sql.NullString
	var sentAt, remindedAt sql.NullTime

	err := scanner.Scan(
		&g.ID, &g.EventID, &g.Name, &email, &phone, &g.Notes, &g.InviteStatus,
		&sentAt, &remindedAt, &token, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Email = stringPtr(email)
	g.Phone = stringPtr(phone)
	g.InviteToken = stringPtr(token)
	g.InviteSentAt = timePtr(sentAt)
	g.ReminderSentAt = timePtr(remindedAt)
	return &g, nil
}

const guestCols = `id, event_id, name, email, phone, notes, invite_status,
	invite_sent_at, reminder_sent_at, invite_token, created_at, updated_at`

func (s *GuestStore) Create(eventID int64, name string, email, phone *string, notes string) (*model.Guest, error) {
	result, err := s.db.Exec(
		`INSERT INTO guests (event_id, name, email, phone, notes) VALUES (?, ?, ?, ?, ?)`,
		eventID, name, nullString(email), nullString(phone), notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert guest: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetForEvent(id, eventID)
}

func (s *GuestStore) GetForEvent(id, eventID int64) (*model.Guest, error) {
	return s.getOne(`SELECT `+guestCols+` FROM guests WHERE id = ? AND event_id = ?`, id, eventID)
}

func (s *GuestStore) GetByInviteToken(token string) (*model.Guest, error) {
	return s.getOne(`SELECT `+guestCols+` FROM guests WHERE invite_token = ?`, token)
}

func (s *GuestStore) getOne(query string, args ...any) (*model.Guest, error) {
	g, err := scanGuest(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	return g, nil
}

func (s *GuestStore) ListByEvent(eventID int64) ([]model.Guest, error) {
	return s.list(`SELECT `+guestCols+` FROM guests WHERE event_id = ? ORDER BY name COLLATE NOCASE, id`, eventID)
}

// ListInviteEligible returns guests with an email whose invitation has not
// gone out yet or failed last time.
func (s *GuestStore) ListInviteEligible(eventID int64) ([]model.Guest, error) {
	return s.list(
		`SELECT `+guestCols+` FROM guests
		 WHERE event_id = ? AND email IS NOT NULL AND invite_status IN ('not_sent', 'failed')
		 ORDER BY id`,
		eventID,
	)
}

// ListReminderEligible returns invited guests that were never reminded and
// can be reached on at least one channel.
func (s *GuestStore) ListReminderEligible(eventID int64) ([]model.Guest, error) {
	return s.list(
		`SELECT `+guestCols+` FROM guests
		 WHERE event_id = ? AND invite_status = 'sent' AND reminder_sent_at IS NULL
		   AND (email IS NOT NULL OR phone IS NOT NULL)
		 ORDER BY id`,
		eventID,
	)
}

// ListInvited returns guests whose invitation was delivered.
func (s *GuestStore) ListInvited(eventID int64) ([]model.Guest, error) {
	return s.list(
		`SELECT `+guestCols+` FROM guests WHERE event_id = ? AND invite_status = 'sent' ORDER BY id`,
		eventID,
	)
}

func (s *GuestStore) list(query string, args ...any) ([]model.Guest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	defer rows.Close()

	var guests []model.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guest: %w", err)
		}
		guests = append(guests, *g)
	}
	return guests, rows.Err()
}

func (s *GuestStore) Update(id, eventID int64, name string, email, phone *string, notes string) (*model.Guest, error) {
	result, err := s.db.Exec(
		`UPDATE guests SET name = ?, email = ?, phone = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND event_id = ?`,
		name, nullString(email), nullString(phone), notes, id, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("update guest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetForEvent(id, eventID)
}

func (s *GuestStore) Delete(id, eventID int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM guests WHERE id = ? AND event_id = ?`, id, eventID)
	if err != nil {
		return false, fmt.Errorf("delete guest: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// EnsureInviteToken assigns an invite token if the guest has none and
// returns the guest's token. Existing tokens are never replaced, so links
// in earlier emails keep working across resends.
func (s *GuestStore) EnsureInviteToken(id int64) (string, error) {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err := s.db.Exec(
		`UPDATE guests SET invite_token = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND invite_token IS NULL`,
		token, id,
	)
	if err != nil {
		return "", fmt.Errorf("set invite token: %w", err)
	}

	var current sql.NullString
	if err := s.db.QueryRow(`SELECT invite_token FROM guests WHERE id = ?`, id).Scan(&current); err != nil {
		return "", fmt.Errorf("read invite token: %w", err)
	}
	if !current.Valid {
		return "", fmt.Errorf("guest %d has no invite token", id)
	}
	return current.String, nil
}

func (s *GuestStore) MarkInviteSent(id int64, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE guests SET invite_status = 'sent', invite_sent_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark invite sent: %w", err)
	}
	return nil
}

func (s *GuestStore) MarkInviteFailed(id int64) error {
	_, err := s.db.Exec(
		`UPDATE guests SET invite_status = 'failed', updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark invite failed: %w", err)
	}
	return nil
}

// MarkReminded stamps reminder_sent_at on all given guests in one statement.
func (s *GuestStore) MarkReminded(ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, at.UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.Exec(
		`UPDATE guests SET reminder_sent_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}
