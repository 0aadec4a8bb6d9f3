package model

import "time"

const (
	RSVPAttending = "attending"
	RSVPMaybe     = "maybe"
	RSVPDeclined  = "declined"
)

const (
	FieldText     = "text"
	FieldNumber   = "number"
	FieldSelect   = "select"
	FieldCheckbox = "checkbox"
)

type RSVPField struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	Label     string    `json:"label"`
	FieldType string    `json:"field_type"`
	Options   []string  `json:"options"`
	Required  bool      `json:"required"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type RSVPResponse struct {
	ID        int64             `json:"id"`
	EventID   int64             `json:"event_id"`
	GuestID   *int64            `json:"guest_id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Status    string            `json:"status"`
	Headcount int               `json:"headcount"`
	Answers   map[string]string `json:"answers"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RSVPSummary aggregates responses for the host dashboard.
type RSVPSummary struct {
	Attending int `json:"attending"`
	Maybe     int `json:"maybe"`
	Declined  int `json:"declined"`
	Headcount int `json:"headcount"`
}

type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}
