package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/invitely/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner rowScanner) (*model.User, error) {
	var u model.User
	var email, phone sql.NullString
	if err := scanner.Scan(&u.ID, &email, &phone, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Email = stringPtr(email)
	u.Phone = stringPtr(phone)
	return &u, nil
}

const userCols = `id, email, phone, created_at`

// FindOrCreate returns the user owning the identifier, creating it on first sight.
func (s *UserStore) FindOrCreate(id model.Identifier) (*model.User, error) {
	col, ok := identifierColumn(id.Method)
	if !ok {
		return nil, fmt.Errorf("unknown identifier method %q", id.Method)
	}

	_, err := s.db.Exec(
		`INSERT INTO users (`+col+`) VALUES (?) ON CONFLICT(`+col+`) DO NOTHING`,
		id.Value,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE `+col+` = ?`, id.Value)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", col, err)
	}
	return u, nil
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
