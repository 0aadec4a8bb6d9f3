package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/invitely/internal/model"
)

type CommentStore struct {
	db *sql.DB
}

func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentCols = `id, event_id, author_name, body, created_at`

func scanComment(scanner rowScanner) (*model.Comment, error) {
	var c model.Comment
	if err := scanner.Scan(&c.ID, &c.EventID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CommentStore) Create(eventID int64, authorName, body string) (*model.Comment, error) {
	row := s.db.QueryRow(
		`INSERT INTO event_comments (event_id, author_name, body) VALUES (?, ?, ?) RETURNING `+commentCols,
		eventID, authorName, body,
	)
	c, err := scanComment(row)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (s *CommentStore) ListByEvent(eventID int64) ([]model.Comment, error) {
	rows, err := s.db.Query(`SELECT `+commentCols+` FROM event_comments WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func (s *CommentStore) Delete(id, eventID int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM event_comments WHERE id = ? AND event_id = ?`, id, eventID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
