package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dukerupert/invitely/internal/auth"
	"github.com/dukerupert/invitely/internal/middleware"
	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/passcode"
	"github.com/dukerupert/invitely/internal/store"
)

// UserCookieName is the script-readable cookie describing the signed-in
// user. It is for display only and is never used to authorize a request.
const UserCookieName = "invitely_user"

type AuthHandler struct {
	passcodes    *passcode.Service
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	secure       bool
	logger       *slog.Logger
}

func NewAuthHandler(ps *passcode.Service, ss *store.SessionStore, us *store.UserStore, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		passcodes:    ps,
		sessionStore: ss,
		userStore:    us,
		secure:       secureCookies,
		logger:       logger,
	}
}

type codeRequest struct {
	Method  string `json:"method" validate:"required,oneof=email phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Code    string `json:"code"`
	EventID *int64 `json:"eventId"`
}

func (c codeRequest) passcode() passcode.Request {
	return passcode.Request{Method: c.Method, Email: c.Email, Phone: c.Phone, EventID: c.EventID}
}

// userInfo is the JSON shape of the user cookie and verify response.
type userInfo struct {
	ID      int64   `json:"id"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Role    string  `json:"role"`
	EventID *int64  `json:"eventId"`
}

func passcodeStatus(err error) (int, string) {
	switch {
	case errors.Is(err, passcode.ErrMissingFields):
		return http.StatusBadRequest, "provide a method and exactly one matching email or phone"
	case errors.Is(err, passcode.ErrInvalidOrExpiredCode):
		return http.StatusUnauthorized, "invalid or expired code"
	case errors.Is(err, passcode.ErrDeliveryFailed):
		return http.StatusInternalServerError, "failed to send code"
	case errors.Is(err, passcode.ErrSessionCreationFailed):
		return http.StatusInternalServerError, "failed to create session"
	}
	return http.StatusInternalServerError, "internal error"
}

// RequestCode handles POST /api/auth/request-code
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	role, err := h.passcodes.Request(r.Context(), req.passcode())
	if err != nil {
		status, msg := passcodeStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("request code", "method", req.Method, "error", err)
		}
		writeError(w, status, msg)
		return
	}

	msg := "Check your email for a sign-in code"
	if req.Method == model.MethodPhone {
		msg = "Check your phone for a sign-in code"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
		"role":    role,
	})
}

// VerifyCode handles POST /api/auth/verify-code
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	login, err := h.passcodes.Verify(r.Context(), req.passcode(), req.Code)
	if err != nil {
		status, msg := passcodeStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("verify code", "method", req.Method, "error", err)
		}
		writeError(w, status, msg)
		return
	}

	info := userInfo{
		ID:      login.User.ID,
		Email:   login.User.Email,
		Phone:   login.User.Phone,
		Role:    login.Session.Role,
		EventID: login.Session.EventID,
	}
	h.setSessionCookies(w, login.Session, info)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    info,
		"message": passcode.SuccessMessage(login.Session.Role),
	})
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, sess *model.Session, info userInfo) {
	maxAge := int(store.SessionTTL.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secure,
	})

	data, err := json.Marshal(info)
	if err != nil {
		h.logger.Error("encode user cookie", "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookieName,
		Value:    url.QueryEscape(string(data)),
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  sess.ExpiresAt,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secure,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil {
		h.logger.Error("get user", "user_id", ac.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, userInfo{
		ID:      user.ID,
		Email:   user.Email,
		Phone:   user.Phone,
		Role:    ac.Role,
		EventID: ac.EventID,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessionStore.GetByToken(cookie.Value); err == nil && sess != nil {
			if err := h.sessionStore.Delete(sess.ID); err != nil {
				h.logger.Error("delete session", "session_id", sess.ID, "error", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secure,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secure,
	})

	w.WriteHeader(http.StatusNoContent)
}
