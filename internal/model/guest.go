package model

import "time"

// Invite statuses. A send attempt moves not_sent or failed to sent or failed.
const (
	InviteNotSent = "not_sent"
	InviteSent    = "sent"
	InviteFailed  = "failed"
)

type Guest struct {
	ID             int64      `json:"id"`
	EventID        int64      `json:"event_id"`
	Name           string     `json:"name"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	Notes          string     `json:"notes"`
	InviteStatus   string     `json:"invite_status"`
	InviteSentAt   *time.Time `json:"invite_sent_at"`
	ReminderSentAt *time.Time `json:"reminder_sent_at"`
	InviteToken    *string    `json:"invite_token"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EmailAddr returns the guest's email or "" when none is on file.
func (g *Guest) EmailAddr() string {
	if g.Email == nil {
		return ""
	}
	return *g.Email
}

// PhoneNumber returns the guest's phone or "" when none is on file.
func (g *Guest) PhoneNumber() string {
	if g.Phone == nil {
		return ""
	}
	return *g.Phone
}
