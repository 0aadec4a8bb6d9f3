package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/invitely/internal/auth"
	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/payment"
	"github.com/dukerupert/invitely/internal/store"
)

type BillingHandler struct {
	events *store.EventStore
	users  *store.UserStore
	stripe *payment.Client
	logger *slog.Logger
}

func NewBillingHandler(es *store.EventStore, us *store.UserStore, sc *payment.Client, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{events: es, users: us, stripe: sc, logger: logger}
}

// Upgrade handles POST /api/events/{id}/upgrade
func (h *BillingHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	if event.Tier == model.TierPremium {
		writeError(w, http.StatusConflict, "event is already premium")
		return
	}

	var customerEmail string
	if user, err := h.users.GetByID(auth.UserID(r.Context())); err == nil && user != nil && user.Email != nil {
		customerEmail = *user.Email
	}

	url, err := h.stripe.CreateUpgradeCheckout(event.ID, model.TierPremium, customerEmail)
	if err != nil {
		h.logger.Error("create checkout", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook handles POST /webhooks/stripe
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	event, err := h.stripe.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("stripe webhook signature", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	up, ok, err := payment.UpgradeFromEvent(event)
	if err != nil {
		h.logger.Error("stripe webhook payload", "event_id", event.ID, "error", err)
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if ok {
		if err := h.events.SetTier(up.EventID, up.Tier); err != nil {
			h.logger.Error("set event tier", "event_id", up.EventID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to apply upgrade")
			return
		}
		h.logger.Info("event upgraded", "event_id", up.EventID, "tier", up.Tier)
	}

	w.WriteHeader(http.StatusOK)
}
