package payment

import (
	"encoding/json"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Config struct {
	SecretKey      string
	WebhookSecret  string
	PremiumPriceID string
	BaseURL        string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// Configured returns true if checkout sessions can be created and webhooks verified.
func (c *Client) Configured() bool {
	return c.cfg.SecretKey != "" && c.cfg.WebhookSecret != "" && c.cfg.PremiumPriceID != ""
}

// CreateUpgradeCheckout creates a one-time checkout session that upgrades
// eventID to tier once paid, and returns the hosted checkout URL.
func (c *Client) CreateUpgradeCheckout(eventID int64, tier, customerEmail string) (string, error) {
	returnURL := fmt.Sprintf("%s/events/%d", c.cfg.BaseURL, eventID)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.PremiumPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(returnURL + "?upgraded=1"),
		CancelURL:           stripe.String(returnURL),
		Metadata: map[string]string{
			"event_id": strconv.FormatInt(eventID, 10),
			"tier":     tier,
		},
	}
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}

	sess, err := checksession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// TierUpgrade is the outcome of a paid upgrade checkout.
type TierUpgrade struct {
	EventID int64
	Tier    string
}

// UpgradeFromEvent extracts a tier upgrade from a checkout.session.completed
// event. ok is false for other event types, unpaid sessions, and sessions not
// created by CreateUpgradeCheckout.
func UpgradeFromEvent(event stripe.Event) (up TierUpgrade, ok bool, err error) {
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return TierUpgrade{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return TierUpgrade{}, false, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return TierUpgrade{}, false, nil
	}

	rawID, tier := sess.Metadata["event_id"], sess.Metadata["tier"]
	if rawID == "" || tier == "" {
		return TierUpgrade{}, false, nil
	}
	eventID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return TierUpgrade{}, false, fmt.Errorf("parse event_id metadata %q: %w", rawID, err)
	}
	return TierUpgrade{EventID: eventID, Tier: tier}, true, nil
}
