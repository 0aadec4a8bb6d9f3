package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/invitely/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner rowScanner) (*model.Event, error) {
	var e model.Event
	var startsAt, deadline sql.NullTime
	var passwordHash sql.NullString

	err := scanner.Scan(
		&e.ID, &e.UserID, &e.Title, &e.Slug, &e.Status, &e.Tier, &e.DesignURL,
		&e.Description, &startsAt, &e.Location, &e.HostName, &e.DressCode,
		&deadline, &passwordHash, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.StartsAt = timePtr(startsAt)
	e.RSVPDeadline = timePtr(deadline)
	e.PasswordHash = stringPtr(passwordHash)
	return &e, nil
}

const eventCols = `id, user_id, title, slug, status, tier, design_url, description, starts_at,
	location, host_name, dress_code, rsvp_deadline, password_hash, created_at, updated_at`

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a title into a URL slug with a short random suffix so two
// events with the same title never collide.
func slugify(title string) string {
	base := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(base) > 48 {
		base = strings.TrimRight(base[:48], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func (s *EventStore) Create(userID int64, f model.EventFields) (*model.Event, error) {
	result, err := s.db.Exec(
		`INSERT INTO events (user_id, title, slug, description, starts_at, location, host_name, dress_code, rsvp_deadline)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, f.Title, slugify(f.Title), f.Description, nullTime(f.StartsAt),
		f.Location, f.HostName, f.DressCode, nullTime(f.RSVPDeadline),
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	return s.getOne(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
}

// GetForOwner returns the event only if userID owns it. A miss and a
// foreign event are both reported as nil.
func (s *EventStore) GetForOwner(id, userID int64) (*model.Event, error) {
	return s.getOne(`SELECT `+eventCols+` FROM events WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *EventStore) GetBySlug(slug string) (*model.Event, error) {
	return s.getOne(`SELECT `+eventCols+` FROM events WHERE slug = ?`, slug)
}

func (s *EventStore) getOne(query string, args ...any) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *EventStore) ListByOwner(userID int64) ([]model.Event, error) {
	return s.list(`SELECT `+eventCols+` FROM events WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

func (s *EventStore) ListAll() ([]model.Event, error) {
	return s.list(`SELECT ` + eventCols + ` FROM events ORDER BY created_at DESC, id DESC`)
}

func (s *EventStore) list(query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update rewrites the display fields of an owned event. It returns nil if
// the event does not exist or belongs to someone else.
func (s *EventStore) Update(id, userID int64, f model.EventFields) (*model.Event, error) {
	result, err := s.db.Exec(
		`UPDATE events SET title = ?, description = ?, starts_at = ?, location = ?, host_name = ?,
		   dress_code = ?, rsvp_deadline = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		f.Title, f.Description, nullTime(f.StartsAt), f.Location, f.HostName,
		f.DressCode, nullTime(f.RSVPDeadline), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.afterOwnedWrite(result, id, userID)
}

func (s *EventStore) SetStatus(id, userID int64, status string) (*model.Event, error) {
	result, err := s.db.Exec(
		`UPDATE events SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		status, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("set event status: %w", err)
	}
	return s.afterOwnedWrite(result, id, userID)
}

// SetPassword stores or clears (nil hash) the public page access password.
func (s *EventStore) SetPassword(id, userID int64, hash *string) (*model.Event, error) {
	result, err := s.db.Exec(
		`UPDATE events SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		nullString(hash), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("set event password: %w", err)
	}
	return s.afterOwnedWrite(result, id, userID)
}

func (s *EventStore) SetDesignURL(id, userID int64, url string) (*model.Event, error) {
	result, err := s.db.Exec(
		`UPDATE events SET design_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		url, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("set event design: %w", err)
	}
	return s.afterOwnedWrite(result, id, userID)
}

// SetTier is called from the payment webhook, which has no session, so it
// is not owner-filtered.
func (s *EventStore) SetTier(id int64, tier string) error {
	_, err := s.db.Exec(
		`UPDATE events SET tier = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		tier, id,
	)
	if err != nil {
		return fmt.Errorf("set event tier: %w", err)
	}
	return nil
}

// Delete removes an owned event and everything hanging off it. It reports
// whether a row was deleted.
func (s *EventStore) Delete(id, userID int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *EventStore) afterOwnedWrite(result sql.Result, id, userID int64) (*model.Event, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetForOwner(id, userID)
}
