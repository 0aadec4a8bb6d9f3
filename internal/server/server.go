package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/invitely/internal/backup"
	"github.com/dukerupert/invitely/internal/config"
	"github.com/dukerupert/invitely/internal/database"
	"github.com/dukerupert/invitely/internal/dispatch"
	"github.com/dukerupert/invitely/internal/email"
	"github.com/dukerupert/invitely/internal/handler"
	"github.com/dukerupert/invitely/internal/middleware"
	"github.com/dukerupert/invitely/internal/passcode"
	"github.com/dukerupert/invitely/internal/payment"
	"github.com/dukerupert/invitely/internal/push"
	"github.com/dukerupert/invitely/internal/sms"
	"github.com/dukerupert/invitely/internal/storage"
	"github.com/dukerupert/invitely/internal/store"
	ws "github.com/dukerupert/invitely/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	eventH        *handler.EventHandler
	guestH        *handler.GuestHandler
	rsvpH         *handler.RSVPHandler
	commentH      *handler.CommentHandler
	announcementH *handler.AnnouncementHandler
	signupH       *handler.SignupHandler
	liveH         *handler.LiveHandler
	adminH        *handler.AdminHandler
	designH       *handler.DesignHandler
	billingH      *handler.BillingHandler
	pushH         *handler.PushHandler
	sessionStore  *store.SessionStore
	authCodeStore *store.AuthCodeStore
	rateLimiter   *middleware.RateLimiter
	notifier      *push.Notifier
	backups       *backup.Manager
	trustProxy    bool
	logger        *slog.Logger
}

// New wires stores, integrations and handlers. Integrations that are not
// configured get no routes, except email and SMS whose absence surfaces as
// delivery failures.
func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	var origins []string
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		origins = append(origins, u.Host)
	}
	hub := ws.NewHub(logger, origins...)

	userStore := store.NewUserStore(db)
	adminStore := store.NewAdminUserStore(db)
	authCodeStore := store.NewAuthCodeStore(db)
	sessionStore := store.NewSessionStore(db)
	eventStore := store.NewEventStore(db)
	guestStore := store.NewGuestStore(db)
	fieldStore := store.NewRSVPFieldStore(db)
	responseStore := store.NewRSVPResponseStore(db)
	commentStore := store.NewCommentStore(db)
	announcementStore := store.NewAnnouncementStore(db)
	signupStore := store.NewSignupStore(db)
	pushStore := store.NewPushStore(db)

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail)
	smsClient := sms.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.TwilioMessagingServiceSID)
	if !emailClient.Configured() {
		logger.Warn("postmark not configured, email delivery will fail")
	}
	if !smsClient.Configured() {
		logger.Warn("twilio not configured, sms delivery disabled")
	}

	rateLimiter := middleware.NewRateLimiter()

	passcodes := passcode.NewService(authCodeStore, adminStore, userStore, sessionStore,
		emailClient, smsClient, cfg.BaseURL, logger)
	dispatcher := dispatch.New(eventStore, guestStore, announcementStore,
		emailClient, smsClient, rateLimiter, cfg.BaseURL, logger)

	var notifier handler.Notifier
	var pushNotifier *push.Notifier
	var pushH *handler.PushHandler
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, "mailto:"+cfg.FromEmail)
	if pushSvc.Configured() {
		pushNotifier = push.NewNotifier(pushSvc, pushStore, logger)
		notifier = pushNotifier
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	var designH *handler.DesignHandler
	var objects backup.ObjectStore
	if st := storage.New(cfg.S3); st.Configured() {
		designH = handler.NewDesignHandler(eventStore, st, logger.With("component", "design"))
		objects = st
	}

	var backups handler.Backups
	backupManager := backup.NewManager(cfg.Backup, db, objects, logger)
	if backupManager.Configured() {
		backups = backupManager
	}

	var billingH *handler.BillingHandler
	if sc := payment.NewClient(cfg.Stripe); sc.Configured() {
		billingH = handler.NewBillingHandler(eventStore, userStore, sc, logger.With("component", "billing"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(passcodes, sessionStore, userStore, cfg.Production(), logger.With("component", "auth")),
		eventH:        handler.NewEventHandler(eventStore, logger.With("component", "event")),
		guestH:        handler.NewGuestHandler(eventStore, guestStore, dispatcher, logger.With("component", "guest")),
		rsvpH:         handler.NewRSVPHandler(eventStore, guestStore, fieldStore, responseStore, hub, notifier, logger.With("component", "rsvp")),
		commentH:      handler.NewCommentHandler(eventStore, commentStore, hub, logger.With("component", "comment")),
		announcementH: handler.NewAnnouncementHandler(eventStore, announcementStore, dispatcher, logger.With("component", "announcement")),
		signupH:       handler.NewSignupHandler(eventStore, signupStore, hub, logger.With("component", "signup")),
		liveH:         handler.NewLiveHandler(eventStore, hub, logger.With("component", "live")),
		adminH:        handler.NewAdminHandler(eventStore, adminStore, backups, logger.With("component", "admin")),
		designH:       designH,
		billingH:      billingH,
		pushH:         pushH,
		sessionStore:  sessionStore,
		authCodeStore: authCodeStore,
		rateLimiter:   rateLimiter,
		notifier:      pushNotifier,
		backups:       backupManager,
		trustProxy:    cfg.TrustProxy,
		logger:        logger,
	}
}

// Backups returns the backup manager. Start is a no-op when it is not configured.
func (s *Server) Backups() *backup.Manager {
	return s.backups
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// AuthCodeStore returns the passcode store for cleanup tasks.
func (s *Server) AuthCodeStore() *store.AuthCodeStore {
	return s.authCodeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Notifier returns the push notifier, or nil when push is not configured.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/auth/request-code", s.rateLimitedHandler(s.authH.RequestCode))
	outerMux.HandleFunc("POST /api/auth/verify-code", s.rateLimitedHandler(s.authH.VerifyCode))
	outerMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	outerMux.HandleFunc("GET /api/invite/{token}", s.rsvpH.GetInvite)
	outerMux.HandleFunc("POST /api/invite/{token}/rsvp", s.rateLimitedHandler(s.rsvpH.SubmitInvite))
	outerMux.HandleFunc("GET /api/public/events/{slug}", s.rsvpH.GetPublicEvent)
	outerMux.HandleFunc("POST /api/public/events/{slug}/rsvp", s.rateLimitedHandler(s.rsvpH.SubmitPublic))
	outerMux.HandleFunc("GET /api/public/events/{slug}/comments", s.commentH.PublicList)
	outerMux.HandleFunc("POST /api/public/events/{slug}/comments", s.rateLimitedHandler(s.commentH.PublicCreate))
	outerMux.HandleFunc("GET /api/public/events/{slug}/signup-items", s.signupH.PublicList)
	outerMux.HandleFunc("POST /api/public/events/{slug}/signup-items/{item_id}/claims", s.rateLimitedHandler(s.signupH.Claim))

	if s.billingH != nil {
		outerMux.HandleFunc("POST /webhooks/stripe", s.billingH.Webhook)
	}

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.trustProxy)(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	version, err := database.SchemaVersion(r.Context(), s.db)
	if err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"status": "degraded"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "schema": version})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.IPKey(s.trustProxy), 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Events
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("POST /api/events/{id}/publish", s.eventH.Publish)
	mux.HandleFunc("POST /api/events/{id}/unpublish", s.eventH.Unpublish)
	mux.HandleFunc("PUT /api/events/{id}/password", s.eventH.SetPassword)

	// Guests and dispatch
	mux.HandleFunc("GET /api/events/{id}/guests", s.guestH.List)
	mux.HandleFunc("POST /api/events/{id}/guests", s.guestH.Create)
	mux.HandleFunc("PUT /api/events/{id}/guests/{guest_id}", s.guestH.Update)
	mux.HandleFunc("DELETE /api/events/{id}/guests/{guest_id}", s.guestH.Delete)
	mux.HandleFunc("POST /api/events/{id}/invitations/send", s.guestH.SendInvitations)
	mux.HandleFunc("POST /api/events/{id}/reminders/send", s.guestH.SendReminders)

	// RSVP
	mux.HandleFunc("GET /api/events/{id}/rsvp-fields", s.rsvpH.ListFields)
	mux.HandleFunc("POST /api/events/{id}/rsvp-fields", s.rsvpH.CreateField)
	mux.HandleFunc("DELETE /api/events/{id}/rsvp-fields/{field_id}", s.rsvpH.DeleteField)
	mux.HandleFunc("GET /api/events/{id}/responses", s.rsvpH.ListResponses)

	// Comments, announcements, sign-up board
	mux.HandleFunc("DELETE /api/events/{id}/comments/{comment_id}", s.commentH.Delete)
	mux.HandleFunc("GET /api/events/{id}/announcements", s.announcementH.List)
	mux.HandleFunc("POST /api/events/{id}/announcements", s.announcementH.Create)
	mux.HandleFunc("GET /api/events/{id}/signup-items", s.signupH.List)
	mux.HandleFunc("POST /api/events/{id}/signup-items", s.signupH.Create)
	mux.HandleFunc("DELETE /api/events/{id}/signup-items/{item_id}", s.signupH.Delete)

	// Live feed
	mux.HandleFunc("GET /ws/events/{id}", s.liveH.Serve)

	if s.designH != nil {
		mux.HandleFunc("POST /api/events/{id}/design", s.designH.Upload)
	}
	if s.billingH != nil {
		mux.HandleFunc("POST /api/events/{id}/upgrade", s.billingH.Upgrade)
	}
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	}

	// Admin
	mux.Handle("GET /api/admin/events", middleware.RequireAdmin(http.HandlerFunc(s.adminH.ListEvents)))
	mux.Handle("GET /api/admin/admin-users", middleware.RequireAdmin(http.HandlerFunc(s.adminH.ListAdmins)))
	mux.Handle("POST /api/admin/admin-users", middleware.RequireAdmin(http.HandlerFunc(s.adminH.AddAdmin)))
	mux.Handle("GET /api/admin/backups", middleware.RequireAdmin(http.HandlerFunc(s.adminH.BackupStatus)))
	mux.Handle("POST /api/admin/backups", middleware.RequireAdmin(http.HandlerFunc(s.adminH.RunBackup)))
}
