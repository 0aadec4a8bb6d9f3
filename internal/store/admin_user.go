package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/invitely/internal/model"
)

type AdminUserStore struct {
	db *sql.DB
}

func NewAdminUserStore(db *sql.DB) *AdminUserStore {
	return &AdminUserStore{db: db}
}

func scanAdminUser(scanner rowScanner) (*model.AdminUser, error) {
	var a model.AdminUser
	if err := scanner.Scan(&a.ID, &a.Email, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail returns the admin account for email, or nil if there is none.
func (s *AdminUserStore) GetByEmail(email string) (*model.AdminUser, error) {
	row := s.db.QueryRow(`SELECT id, email, created_at FROM admin_users WHERE email = ?`, email)
	a, err := scanAdminUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin user: %w", err)
	}
	return a, nil
}

// Create adds an admin account. Adding an existing email is a no-op.
func (s *AdminUserStore) Create(email string) (*model.AdminUser, error) {
	_, err := s.db.Exec(`INSERT INTO admin_users (email) VALUES (?) ON CONFLICT(email) DO NOTHING`, email)
	if err != nil {
		return nil, fmt.Errorf("insert admin user: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *AdminUserStore) List() ([]model.AdminUser, error) {
	rows, err := s.db.Query(`SELECT id, email, created_at FROM admin_users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list admin users: %w", err)
	}
	defer rows.Close()

	var admins []model.AdminUser
	for rows.Next() {
		a, err := scanAdminUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin user: %w", err)
		}
		admins = append(admins, *a)
	}
	return admins, rows.Err()
}
