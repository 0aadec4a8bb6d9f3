package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/invitely/internal/model"
)

// ErrSignupItemFull is returned when a claim would exceed the quantity needed.
var ErrSignupItemFull = errors.New("signup item is fully claimed")

type SignupStore struct {
	db *sql.DB
}

func NewSignupStore(db *sql.DB) *SignupStore {
	return &SignupStore{db: db}
}

func scanSignupItem(scanner rowScanner) (*model.SignupItem, error) {
	var it model.SignupItem
	err := scanner.Scan(
		&it.ID, &it.EventID, &it.Name, &it.Description, &it.QuantityNeeded,
		&it.QuantityClaimed, &it.SortOrder, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

const signupItemSelect = `SELECT i.id, i.event_id, i.name, i.description, i.quantity_needed,
	COALESCE((SELECT SUM(c.quantity) FROM event_signup_claims c WHERE c.item_id = i.id), 0),
	i.sort_order, i.created_at
	FROM event_signup_items i`

func (s *SignupStore) CreateItem(eventID int64, name, description string, quantityNeeded int) (*model.SignupItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO event_signup_items (event_id, name, description, quantity_needed, sort_order)
		 VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM event_signup_items WHERE event_id = ?))`,
		eventID, name, description, quantityNeeded, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert signup item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(id, eventID)
}

func (s *SignupStore) GetItem(id, eventID int64) (*model.SignupItem, error) {
	it, err := scanSignupItem(s.db.QueryRow(signupItemSelect+` WHERE i.id = ? AND i.event_id = ?`, id, eventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get signup item: %w", err)
	}
	return it, nil
}

// ListItems returns the event's items with their claimed totals.
func (s *SignupStore) ListItems(eventID int64) ([]model.SignupItem, error) {
	rows, err := s.db.Query(signupItemSelect+` WHERE i.event_id = ? ORDER BY i.sort_order, i.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list signup items: %w", err)
	}
	defer rows.Close()

	var items []model.SignupItem
	for rows.Next() {
		it, err := scanSignupItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signup item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *SignupStore) DeleteItem(id, eventID int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM event_signup_items WHERE id = ? AND event_id = ?`, id, eventID)
	if err != nil {
		return false, fmt.Errorf("delete signup item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Claim records a claim only if the item still has room for quantity.
// The capacity check and the insert happen in one statement.
func (s *SignupStore) Claim(itemID int64, name string, quantity int) (*model.SignupClaim, error) {
	result, err := s.db.Exec(
		`INSERT INTO event_signup_claims (item_id, name, quantity)
		 SELECT i.id, ?, ? FROM event_signup_items i
		 WHERE i.id = ?
		   AND i.quantity_needed >= ? + COALESCE((SELECT SUM(quantity) FROM event_signup_claims WHERE item_id = i.id), 0)`,
		name, quantity, itemID, quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("insert signup claim: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrSignupItemFull
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var c model.SignupClaim
	err = s.db.QueryRow(
		`SELECT id, item_id, name, quantity, created_at FROM event_signup_claims WHERE id = ?`, id,
	).Scan(&c.ID, &c.ItemID, &c.Name, &c.Quantity, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get signup claim: %w", err)
	}
	return &c, nil
}

func (s *SignupStore) ListClaims(itemID int64) ([]model.SignupClaim, error) {
	rows, err := s.db.Query(
		`SELECT id, item_id, name, quantity, created_at FROM event_signup_claims WHERE item_id = ? ORDER BY id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list signup claims: %w", err)
	}
	defer rows.Close()

	var claims []model.SignupClaim
	for rows.Next() {
		var c model.SignupClaim
		if err := rows.Scan(&c.ID, &c.ItemID, &c.Name, &c.Quantity, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signup claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
