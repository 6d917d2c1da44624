// Package config reads the process environment once at start-up.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"foundation_site/internal/apperror"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendRest     = "rest"

	PaymentProviderClickPesa = "clickpesa"
	PaymentProviderMidtrans  = "midtrans"

	DefaultClickPesaAPIURL = "https://api.clickpesa.com/v1"
)

type Config struct {
	Env     string
	Port    string
	AppURL  string
	AppName string

	Store     StoreConfig
	RedisURL  string
	Payment   PaymentConfig
	Email     EmailConfig
	Waha      WahaConfig
	Analytics AnalyticsConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
	Firebase  FirebaseConfig
}

type StoreConfig struct {
	Backend     string
	DatabaseURL string
	SupabaseURL string
	SupabaseKey string
}

type PaymentConfig struct {
	Provider   string
	ReturnURL  string
	WebhookURL string

	ClickPesaAPIURL     string
	ClickPesaMerchantID string
	ClickPesaAPIKey     string

	MidtransServerKey    string
	MidtransClientKey    string
	MidtransIsProduction bool
}

type EmailConfig struct {
	From       string
	AdminEmail string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string

	MailgunDomain string
	MailgunAPIKey string
}

type WahaConfig struct {
	BaseURL     string
	APIKey      string
	Session     string
	AdminChatID string
}

type AnalyticsConfig struct {
	MeasurementID string
	APISecret     string
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	ExpiresIn         time.Duration
}

type NotifyConfig struct {
	Workers   int
	QueueSize int
}

type FirebaseConfig struct {
	CredentialsPath string
	APIKey          string
	AuthDomain      string
	ProjectID       string
}

// LoadDotenv loads .env if present and reports whether it did.
func LoadDotenv() bool {
	return godotenv.Load() == nil
}

// Load reads the environment. Missing payment credentials are not an error
// here; see PaymentConfig.Validate.
func Load() Config {
	appURL := strings.TrimRight(getenv("APP_URL", "http://localhost:8080"), "/")

	cfg := Config{
		Env:     getenv("ENV", "development"),
		Port:    getenv("PORT", "8080"),
		AppURL:  appURL,
		AppName: getenv("APP_NAME", "Samatta Foundation"),
		Store: StoreConfig{
			Backend:     os.Getenv("STORE_BACKEND"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			SupabaseURL: os.Getenv("SUPABASE_URL"),
			SupabaseKey: os.Getenv("SUPABASE_ANON_KEY"),
		},
		RedisURL: os.Getenv("REDIS_URL"),
		Payment: PaymentConfig{
			Provider:             getenv("PAYMENT_PROVIDER", PaymentProviderClickPesa),
			ReturnURL:            getenv("PAYMENT_RETURN_URL", appURL+"/donate?status=pending"),
			WebhookURL:           os.Getenv("PAYMENT_WEBHOOK_URL"),
			ClickPesaAPIURL:      getenv("CLICKPESA_API_URL", DefaultClickPesaAPIURL),
			ClickPesaMerchantID:  os.Getenv("CLICKPESA_MERCHANT_ID"),
			ClickPesaAPIKey:      os.Getenv("CLICKPESA_API_KEY"),
			MidtransServerKey:    os.Getenv("MIDTRANS_SERVER_KEY"),
			MidtransClientKey:    os.Getenv("MIDTRANS_CLIENT_KEY"),
			MidtransIsProduction: os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",
		},
		Email: EmailConfig{
			From:          getenv("EMAIL_FROM", "no-reply@samattafoundation.org"),
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			SMTPHost:      os.Getenv("SMTP_HOST"),
			SMTPPort:      os.Getenv("SMTP_PORT"),
			SMTPUser:      os.Getenv("SMTP_USER"),
			SMTPPass:      os.Getenv("SMTP_PASS"),
			MailgunDomain: os.Getenv("MAILGUN_DOMAIN"),
			MailgunAPIKey: os.Getenv("MAILGUN_API_KEY"),
		},
		Waha: WahaConfig{
			BaseURL:     os.Getenv("WAHA_BASE_URL"),
			APIKey:      os.Getenv("WAHA_API_KEY"),
			Session:     getenv("WAHA_SESSION", "default"),
			AdminChatID: os.Getenv("WAHA_ADMIN_CHAT_ID"),
		},
		Analytics: AnalyticsConfig{
			MeasurementID: os.Getenv("GA_MEASUREMENT_ID"),
			APISecret:     os.Getenv("GA_API_SECRET"),
		},
		Retry: RetryConfig{
			MaxRetries: getInt("RETRY_MAX_RETRIES", 2),
			BaseDelay:  time.Duration(getInt("RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getFloat("RATE_LIMIT_RPS", 1),
			Burst:             getInt("RATE_LIMIT_BURST", 5),
			ExpiresIn:         3 * time.Minute,
		},
		Notify: NotifyConfig{
			Workers:   getInt("NOTIFY_WORKERS", 2),
			QueueSize: getInt("NOTIFY_QUEUE_SIZE", 100),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getenv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
			APIKey:          os.Getenv("FIREBASE_API_KEY"),
			AuthDomain:      os.Getenv("FIREBASE_AUTH_DOMAIN"),
			ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		},
	}

	if cfg.Store.Backend == "" {
		if cfg.Store.DatabaseURL != "" {
			cfg.Store.Backend = StoreBackendPostgres
		} else {
			cfg.Store.Backend = StoreBackendRest
		}
	}
	if cfg.Payment.WebhookURL == "" {
		cfg.Payment.WebhookURL = appURL + "/api/webhooks/" + cfg.Payment.Provider
	}
	return cfg
}

func (c Config) IsProduction() bool { return c.Env == "production" }

// Validate reports the credentials the selected provider is missing. The
// message names the environment variables for the operator.
func (p PaymentConfig) Validate() error {
	var missing []string
	switch p.Provider {
	case PaymentProviderClickPesa:
		if p.ClickPesaMerchantID == "" {
			missing = append(missing, "CLICKPESA_MERCHANT_ID")
		}
		if p.ClickPesaAPIKey == "" {
			missing = append(missing, "CLICKPESA_API_KEY")
		}
	case PaymentProviderMidtrans:
		if p.MidtransServerKey == "" {
			missing = append(missing, "MIDTRANS_SERVER_KEY")
		}
	default:
		return apperror.Configuration("unknown PAYMENT_PROVIDER %q", p.Provider)
	}
	if len(missing) > 0 {
		return apperror.Configuration("%s payments are not configured: set %s", p.Provider, strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks the selected store backend has what it needs.
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case StoreBackendPostgres:
		if s.DatabaseURL == "" {
			return apperror.Configuration("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case StoreBackendRest:
		if s.SupabaseURL == "" || s.SupabaseKey == "" {
			return apperror.Configuration("STORE_BACKEND=rest requires SUPABASE_URL and SUPABASE_ANON_KEY")
		}
	default:
		return apperror.Configuration("unknown STORE_BACKEND %q", s.Backend)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}
