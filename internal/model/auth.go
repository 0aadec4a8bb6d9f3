package model

import "time"

// Roles a passcode or session can carry.
const (
	RoleAdmin = "admin"
	RoleGuest = "guest"
)

type User struct {
	ID        int64     `json:"id"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthCode is a pending passcode challenge. Exactly one of Email and Phone is set.
type AuthCode struct {
	ID        int64     `json:"id"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Code      string    `json:"-"`
	Role      string    `json:"role"`
	EventID   *int64    `json:"event_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	EventID   *int64    `json:"event_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Passcode delivery methods.
const (
	MethodEmail = "email"
	MethodPhone = "phone"
)

// Identifier names the email address or phone number a passcode is bound to.
type Identifier struct {
	Method string
	Value  string
}
