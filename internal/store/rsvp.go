package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/invitely/internal/model"
)

type RSVPFieldStore struct {
	db *sql.DB
}

func NewRSVPFieldStore(db *sql.DB) *RSVPFieldStore {
	return &RSVPFieldStore{db: db}
}

func scanRSVPField(scanner rowScanner) (*model.RSVPField, error) {
	var f model.RSVPField
	var options string
	var required int

	err := scanner.Scan(&f.ID, &f.EventID, &f.Label, &f.FieldType, &options, &required, &f.SortOrder, &f.CreatedAt)
	if err != nil {
		return nil, err
	}

	f.Required = required != 0
	if err := json.Unmarshal([]byte(options), &f.Options); err != nil {
		return nil, fmt.Errorf("decode field options: %w", err)
	}
	if f.Options == nil {
		f.Options = []string{}
	}
	return &f, nil
}

const rsvpFieldCols = `id, event_id, label, field_type, options, required, sort_order, created_at`

// Create appends a field after the event's existing fields.
func (s *RSVPFieldStore) Create(eventID int64, label, fieldType string, options []string, required bool) (*model.RSVPField, error) {
	if options == nil {
		options = []string{}
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encode field options: %w", err)
	}
	var req int
	if required {
		req = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO rsvp_fields (event_id, label, field_type, options, required, sort_order)
		 VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM rsvp_fields WHERE event_id = ?))`,
		eventID, label, fieldType, string(encoded), req, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rsvp field: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+rsvpFieldCols+` FROM rsvp_fields WHERE id = ?`, id)
	return scanRSVPField(row)
}

func (s *RSVPFieldStore) ListByEvent(eventID int64) ([]model.RSVPField, error) {
	rows, err := s.db.Query(`SELECT `+rsvpFieldCols+` FROM rsvp_fields WHERE event_id = ? ORDER BY sort_order, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list rsvp fields: %w", err)
	}
	defer rows.Close()

	var fields []model.RSVPField
	for rows.Next() {
		f, err := scanRSVPField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rsvp field: %w", err)
		}
		fields = append(fields, *f)
	}
	return fields, rows.Err()
}

func (s *RSVPFieldStore) Delete(id, eventID int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM rsvp_fields WHERE id = ? AND event_id = ?`, id, eventID)
	if err != nil {
		return false, fmt.Errorf("delete rsvp field: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type RSVPResponseStore struct {
	db *sql.DB
}

func NewRSVPResponseStore(db *sql.DB) *RSVPResponseStore {
	return &RSVPResponseStore{db: db}
}

func scanRSVPResponse(scanner rowScanner) (*model.RSVPResponse, error) {
	var r model.RSVPResponse
	var guestID sql.NullInt64
	var answers string

	err := scanner.Scan(
		&r.ID, &r.EventID, &guestID, &r.Name, &r.Email, &r.Status,
		&r.Headcount, &answers, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.GuestID = int64Ptr(guestID)
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if r.Answers == nil {
		r.Answers = map[string]string{}
	}
	return &r, nil
}

const rsvpResponseCols = `id, event_id, guest_id, name, email, status, headcount, answers, created_at, updated_at`

// Save records a response. Responses tied to a guest are upserted so a
// guest changing their mind replaces the earlier answer; open responses
// (nil guestID) always insert.
func (s *RSVPResponseStore) Save(r model.RSVPResponse) (*model.RSVPResponse, error) {
	if r.Answers == nil {
		r.Answers = map[string]string{}
	}
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	row := s.db.QueryRow(
		`INSERT INTO rsvp_responses (event_id, guest_id, name, email, status, headcount, answers)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guest_id) DO UPDATE SET
		   name = excluded.name,
		   email = excluded.email,
		   status = excluded.status,
		   headcount = excluded.headcount,
		   answers = excluded.answers,
		   updated_at = CURRENT_TIMESTAMP
		 RETURNING `+rsvpResponseCols,
		r.EventID, nullInt64(r.GuestID), r.Name, r.Email, r.Status, r.Headcount, string(answers),
	)
	saved, err := scanRSVPResponse(row)
	if err != nil {
		return nil, fmt.Errorf("save rsvp response: %w", err)
	}
	return saved, nil
}

func (s *RSVPResponseStore) GetByGuest(guestID int64) (*model.RSVPResponse, error) {
	row := s.db.QueryRow(`SELECT `+rsvpResponseCols+` FROM rsvp_responses WHERE guest_id = ?`, guestID)
	r, err := scanRSVPResponse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rsvp response: %w", err)
	}
	return r, nil
}

func (s *RSVPResponseStore) ListByEvent(eventID int64) ([]model.RSVPResponse, error) {
	rows, err := s.db.Query(`SELECT `+rsvpResponseCols+` FROM rsvp_responses WHERE event_id = ? ORDER BY updated_at DESC, id DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list rsvp responses: %w", err)
	}
	defer rows.Close()

	var responses []model.RSVPResponse
	for rows.Next() {
		r, err := scanRSVPResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rsvp response: %w", err)
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}

// Summary counts responses by status. Headcount only includes attending parties.
func (s *RSVPResponseStore) Summary(eventID int64) (model.RSVPSummary, error) {
	var sum model.RSVPSummary
	err := s.db.QueryRow(
		`SELECT
		   COALESCE(SUM(CASE WHEN status = 'attending' THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN status = 'maybe' THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN status = 'declined' THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN status = 'attending' THEN headcount ELSE 0 END), 0)
		 FROM rsvp_responses WHERE event_id = ?`,
		eventID,
	).Scan(&sum.Attending, &sum.Maybe, &sum.Declined, &sum.Headcount)
	if err != nil {
		return sum, fmt.Errorf("rsvp summary: %w", err)
	}
	return sum, nil
}
