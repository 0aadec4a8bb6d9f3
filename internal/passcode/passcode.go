package passcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/invitely/internal/email"
	"github.com/dukerupert/invitely/internal/model"
)

var (
	ErrMissingFields         = errors.New("missing or conflicting fields")
	ErrDeliveryFailed        = errors.New("failed to deliver code")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired code")
	ErrSessionCreationFailed = errors.New("failed to create session")
)

type CodeStore interface {
	Upsert(id model.Identifier, role string, eventID *int64) (*model.AuthCode, error)
	Consume(id model.Identifier, code string) (*model.AuthCode, error)
}

type AdminStore interface {
	GetByEmail(email string) (*model.AdminUser, error)
}

type UserStore interface {
	FindOrCreate(id model.Identifier) (*model.User, error)
}

type SessionStore interface {
	Create(userID int64, role string, eventID *int64) (*model.Session, error)
}

type EmailSender interface {
	Send(ctx context.Context, msg email.Message) error
}

type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// Request identifies who a code is for. Exactly the identifier matching
// Method must be set.
type Request struct {
	Method  string
	Email   string
	Phone   string
	EventID *int64
}

// Identifier validates the request and returns the normalized identifier.
func (r Request) Identifier() (model.Identifier, error) {
	em := strings.ToLower(strings.TrimSpace(r.Email))
	ph := strings.TrimSpace(r.Phone)

	switch r.Method {
	case model.MethodEmail:
		if em == "" || ph != "" {
			return model.Identifier{}, ErrMissingFields
		}
		return model.Identifier{Method: model.MethodEmail, Value: em}, nil
	case model.MethodPhone:
		if ph == "" || em != "" {
			return model.Identifier{}, ErrMissingFields
		}
		return model.Identifier{Method: model.MethodPhone, Value: ph}, nil
	}
	return model.Identifier{}, ErrMissingFields
}

// AdminLookup is the outcome of checking an email against the admin list.
type AdminLookup int

const (
	AdminNotFound AdminLookup = iota
	AdminFound
)

// Login is a verified identity with its new session.
type Login struct {
	User    *model.User
	Session *model.Session
}

type Service struct {
	codes    CodeStore
	admins   AdminStore
	users    UserStore
	sessions SessionStore
	email    EmailSender
	sms      SMSSender
	baseURL  string
	logger   *slog.Logger
}

func NewService(codes CodeStore, admins AdminStore, users UserStore, sessions SessionStore, emailSender EmailSender, smsSender SMSSender, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		codes:    codes,
		admins:   admins,
		users:    users,
		sessions: sessions,
		email:    emailSender,
		sms:      smsSender,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger.With("component", "passcode"),
	}
}

// lookupAdmin reports whether email belongs to an admin. Lookup errors are
// logged and resolve to AdminNotFound.
func (s *Service) lookupAdmin(addr string) AdminLookup {
	admin, err := s.admins.GetByEmail(addr)
	if err != nil {
		s.logger.Warn("admin lookup failed, issuing guest code", "error", err)
		return AdminNotFound
	}
	if admin == nil {
		return AdminNotFound
	}
	return AdminFound
}

// RoleFor resolves the role a code for id carries. Phone identities are always guests.
func (s *Service) RoleFor(id model.Identifier) string {
	if id.Method == model.MethodEmail && s.lookupAdmin(id.Value) == AdminFound {
		return model.RoleAdmin
	}
	return model.RoleGuest
}

// Request issues a new code for the identifier, replacing any pending one,
// and delivers it. The stored code is kept even if delivery fails.
func (s *Service) Request(ctx context.Context, req Request) (role string, err error) {
	id, err := req.Identifier()
	if err != nil {
		return "", err
	}

	role = s.RoleFor(id)
	ac, err := s.codes.Upsert(id, role, req.EventID)
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	switch id.Method {
	case model.MethodEmail:
		msg, err := email.PasscodeMessage(id.Value, ac.Code, role, DeepLink(s.baseURL, role, req.EventID))
		if err != nil {
			return "", fmt.Errorf("build passcode email: %w", err)
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("passcode email failed", "error", err)
			return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
	case model.MethodPhone:
		if err := s.sms.Send(ctx, id.Value, email.PasscodeSMS(ac.Code)); err != nil {
			s.logger.Error("passcode sms failed", "error", err)
			return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
	}

	s.logger.Info("passcode issued", "method", id.Method, "role", role)
	return role, nil
}

// Verify consumes a matching unexpired code and opens a session for the
// identifier's user. A consumed code cannot be retried even if session
// creation then fails.
func (s *Service) Verify(ctx context.Context, req Request, code string) (*Login, error) {
	id, err := req.Identifier()
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMissingFields
	}

	ac, err := s.codes.Consume(id, code)
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if ac == nil {
		return nil, ErrInvalidOrExpiredCode
	}

	eventID := ac.EventID
	if eventID == nil {
		eventID = req.EventID
	}

	user, err := s.users.FindOrCreate(id)
	if err != nil {
		s.logger.Error("find or create user", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	sess, err := s.sessions.Create(user.ID, ac.Role, eventID)
	if err != nil {
		s.logger.Error("create session", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	s.logger.Info("session created", "user_id", user.ID, "role", sess.Role)
	return &Login{User: user, Session: sess}, nil
}

// DeepLink is where a freshly signed-in user lands.
func DeepLink(baseURL, role string, eventID *int64) string {
	switch {
	case role == model.RoleAdmin:
		return baseURL + "/admin"
	case eventID != nil:
		return fmt.Sprintf("%s/events/%d", baseURL, *eventID)
	default:
		return baseURL + "/dashboard"
	}
}

// SuccessMessage is the role-specific copy shown after verification.
func SuccessMessage(role string) string {
	if role == model.RoleAdmin {
		return "Signed in as administrator"
	}
	return "Signed in successfully"
}
