package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/invitely/internal/model"
)

// AuthCodeTTL is how long an issued passcode stays valid.
const AuthCodeTTL = 15 * time.Minute

type AuthCodeStore struct {
	db *sql.DB
}

func NewAuthCodeStore(db *sql.DB) *AuthCodeStore {
	return &AuthCodeStore{db: db}
}

func scanAuthCode(scanner rowScanner) (*model.AuthCode, error) {
	var ac model.AuthCode
	var email, phone sql.NullString
	var eventID sql.NullInt64

	err := scanner.Scan(
		&ac.ID, &email, &phone, &ac.Code, &ac.Role, &eventID,
		&ac.ExpiresAt, &ac.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ac.Email = stringPtr(email)
	ac.Phone = stringPtr(phone)
	ac.EventID = int64Ptr(eventID)
	return &ac, nil
}

const authCodeCols = `id, email, phone, code, role, event_id, expires_at, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Upsert issues a fresh code for the identifier. The row is keyed by the
// email or phone column, so any pending code for the same identifier is
// replaced and only the newest one can be verified.
func (s *AuthCodeStore) Upsert(id model.Identifier, role string, eventID *int64) (*model.AuthCode, error) {
	col, ok := identifierColumn(id.Method)
	if !ok {
		return nil, fmt.Errorf("unknown identifier method %q", id.Method)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(AuthCodeTTL)

	_, err = s.db.Exec(
		`INSERT INTO auth_codes (`+col+`, code, role, event_id, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(`+col+`) DO UPDATE SET
		   code = excluded.code,
		   role = excluded.role,
		   event_id = excluded.event_id,
		   expires_at = excluded.expires_at,
		   created_at = CURRENT_TIMESTAMP`,
		id.Value, code, role, nullInt64(eventID), expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert auth code: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+authCodeCols+` FROM auth_codes WHERE `+col+` = ?`, id.Value)
	ac, err := scanAuthCode(row)
	if err != nil {
		return nil, fmt.Errorf("read auth code: %w", err)
	}
	return ac, nil
}

// Consume deletes and returns the unexpired code matching identifier and code.
// It returns nil when the code is wrong, expired or already consumed. The
// lookup and delete are one statement, so a code verifies at most once.
func (s *AuthCodeStore) Consume(id model.Identifier, code string) (*model.AuthCode, error) {
	col, ok := identifierColumn(id.Method)
	if !ok {
		return nil, fmt.Errorf("unknown identifier method %q", id.Method)
	}

	row := s.db.QueryRow(
		`DELETE FROM auth_codes WHERE `+col+` = ? AND code = ? AND expires_at > ? RETURNING `+authCodeCols,
		id.Value, code, time.Now().UTC(),
	)
	ac, err := scanAuthCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume auth code: %w", err)
	}
	return ac, nil
}

func (s *AuthCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM auth_codes WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired auth codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
