package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/invitely/internal/model"
)

type AnnouncementStore struct {
	db *sql.DB
}

func NewAnnouncementStore(db *sql.DB) *AnnouncementStore {
	return &AnnouncementStore{db: db}
}

const announcementCols = `id, event_id, subject, body, channels, sent_count, failed_count, created_at`

func scanAnnouncement(scanner rowScanner) (*model.Announcement, error) {
	var a model.Announcement
	var channels string
	err := scanner.Scan(&a.ID, &a.EventID, &a.Subject, &a.Body, &channels, &a.SentCount, &a.FailedCount, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Channels = strings.Split(channels, ",")
	return &a, nil
}

func (s *AnnouncementStore) Create(eventID int64, subject, body string, channels []string, sent, failed int) (*model.Announcement, error) {
	row := s.db.QueryRow(
		`INSERT INTO event_announcements (event_id, subject, body, channels, sent_count, failed_count)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING `+announcementCols,
		eventID, subject, body, strings.Join(channels, ","), sent, failed,
	)
	a, err := scanAnnouncement(row)
	if err != nil {
		return nil, fmt.Errorf("insert announcement: %w", err)
	}
	return a, nil
}

func (s *AnnouncementStore) ListByEvent(eventID int64) ([]model.Announcement, error) {
	rows, err := s.db.Query(`SELECT `+announcementCols+` FROM event_announcements WHERE event_id = ? ORDER BY created_at DESC, id DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	var out []model.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
