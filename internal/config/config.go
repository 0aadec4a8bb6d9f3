package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/invitely/internal/backup"
	"github.com/dukerupert/invitely/internal/payment"
	"github.com/dukerupert/invitely/internal/storage"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port     string
	DBPath   string
	BaseURL  string
	Env      string
	LogLevel string

	// TrustProxy honors CF-Connecting-IP and X-Forwarded-For for client
	// addresses. Enable only behind a proxy that overwrites those headers.
	TrustProxy bool

	PostmarkToken string
	FromEmail     string

	TwilioAccountSID          string
	TwilioAuthToken           string
	TwilioFromNumber          string
	TwilioMessagingServiceSID string

	S3     storage.Config
	Stripe payment.Config
	Backup backup.Config

	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

// Load reads a .env file if present, then the environment. Variables already
// set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) Config {
	get := func(k, d string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return d
	}

	port := get("INVITELY_PORT", "8080")
	baseURL := strings.TrimRight(get("INVITELY_BASE_URL", fmt.Sprintf("http://localhost:%s", port)), "/")

	return Config{
		Port:     port,
		DBPath:   get("INVITELY_DB_PATH", "invitely.db"),
		BaseURL:  baseURL,
		Env:      get("INVITELY_ENV", "development"),
		LogLevel: get("INVITELY_LOG_LEVEL", "info"),

		TrustProxy: boolean(get("INVITELY_TRUST_PROXY", "")),

		PostmarkToken: get("POSTMARK_SERVER_TOKEN", ""),
		FromEmail:     get("INVITELY_FROM_EMAIL", "invites@invitely.app"),

		TwilioAccountSID:          get("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:           get("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:          get("TWILIO_FROM_NUMBER", ""),
		TwilioMessagingServiceSID: get("TWILIO_MESSAGING_SERVICE_SID", ""),

		S3: storage.Config{
			Endpoint:  get("S3_ENDPOINT", ""),
			Bucket:    get("S3_BUCKET", ""),
			Region:    get("S3_REGION", ""),
			AccessKey: get("S3_ACCESS_KEY", ""),
			SecretKey: get("S3_SECRET_KEY", ""),
			PublicURL: get("S3_PUBLIC_URL", ""),
		},
		Stripe: payment.Config{
			SecretKey:      get("STRIPE_SECRET_KEY", ""),
			WebhookSecret:  get("STRIPE_WEBHOOK_SECRET", ""),
			PremiumPriceID: get("STRIPE_PREMIUM_PRICE_ID", ""),
			BaseURL:        baseURL,
		},

		Backup: backup.Config{
			Passphrase: get("INVITELY_BACKUP_PASSPHRASE", ""),
			Interval:   duration(get("INVITELY_BACKUP_INTERVAL", ""), 24*time.Hour),
			Keep:       integer(get("INVITELY_BACKUP_KEEP", ""), 7),
		},

		VAPIDPublicKey:  get("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: get("VAPID_PRIVATE_KEY", ""),
	}
}

// duration parses s, falling back to d when s is empty or invalid.
func duration(s string, d time.Duration) time.Duration {
	if v, err := time.ParseDuration(s); err == nil && v > 0 {
		return v
	}
	return d
}

func integer(s string, d int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return d
}

func boolean(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}

// Production reports whether cookies must be Secure and logs JSON.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// LogFormat returns the slog handler format for the environment.
func (c Config) LogFormat() string {
	if c.Production() {
		return "json"
	}
	return "text"
}
