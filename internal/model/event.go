package model

import "time"

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)

type Event struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Status       string     `json:"status"`
	Tier         string     `json:"tier"`
	DesignURL    string     `json:"design_url"`
	Description  string     `json:"description"`
	StartsAt     *time.Time `json:"starts_at"`
	Location     string     `json:"location"`
	HostName     string     `json:"host_name"`
	DressCode    string     `json:"dress_code"`
	RSVPDeadline *time.Time `json:"rsvp_deadline"`
	PasswordHash *string    `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Published reports whether invitations, reminders and announcements may be sent.
func (e *Event) Published() bool {
	return e.Status == EventStatusPublished
}

// HasPassword reports whether the public page is gated by an access password.
func (e *Event) HasPassword() bool {
	return e.PasswordHash != nil && *e.PasswordHash != ""
}

// EventFields holds the host-editable display fields of an event.
type EventFields struct {
	Title        string
	Description  string
	StartsAt     *time.Time
	Location     string
	HostName     string
	DressCode    string
	RSVPDeadline *time.Time
}

type Comment struct {
	ID         int64     `json:"id"`
	EventID    int64     `json:"event_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type Announcement struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"event_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Channels    []string  `json:"channels"`
	SentCount   int       `json:"sent_count"`
	FailedCount int       `json:"failed_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type SignupItem struct {
	ID              int64     `json:"id"`
	EventID         int64     `json:"event_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	QuantityNeeded  int       `json:"quantity_needed"`
	QuantityClaimed int       `json:"quantity_claimed"`
	SortOrder       int       `json:"sort_order"`
	CreatedAt       time.Time `json:"created_at"`
}

type SignupClaim struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
