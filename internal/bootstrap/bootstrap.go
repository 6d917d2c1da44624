// Package bootstrap builds the collaborators shared by the server, the
// worker and sitectl from a loaded config.
package bootstrap

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"foundation_site/internal/config"
	"foundation_site/internal/models"
	"foundation_site/internal/notify"
	"foundation_site/internal/services"
	"foundation_site/internal/store"
)

// NewLogger returns a production logger in production and a development
// logger everywhere else.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// HTTPClient is shared by the outbound REST integrations.
func HTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// OpenStore connects the configured backend. The *gorm.DB is nil for the
// REST backend.
func OpenStore(cfg config.StoreConfig, log *zap.Logger) (*store.Gateway, *gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	switch cfg.Backend {
	case config.StoreBackendPostgres:
		db, err := services.InitDB(cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return store.NewGateway(store.NewPostgresBackend(db)), db, nil
	default:
		log.Info("using hosted REST store", zap.String("url", cfg.SupabaseURL))
		return store.NewGateway(store.NewRestBackend(cfg.SupabaseURL, cfg.SupabaseKey, HTTPClient())), nil, nil
	}
}

// NewPaymentClient returns the configured gateway client and the parser that
// authenticates and decodes its webhook bodies. An unknown provider returns a nil client: donations then report a
// configuration error. Missing credentials surface when the client is used.
func NewPaymentClient(cfg config.PaymentConfig, log *zap.Logger) (services.PaymentClient, func([]byte) (*services.PaymentVerification, error)) {
	if err := cfg.Validate(); err != nil {
		log.Warn("payments are not ready", zap.Error(err))
	}
	switch cfg.Provider {
	case config.PaymentProviderClickPesa:
		return services.NewClickPesaClient(cfg, HTTPClient()), services.ParseClickPesaCallback
	case config.PaymentProviderMidtrans:
		client := services.NewMidtransClient(cfg)
		log.Warn("midtrans charges IDR only; donations in other currencies are refused",
			zap.Strings("form_currencies", models.Currencies))
		return client, client.ParseNotification
	default:
		return nil, nil
	}
}

// NewAlerter returns the WAHA client, or nil when WAHA is not configured.
func NewAlerter(cfg config.WahaConfig) notify.Alerter {
	if cfg.BaseURL == "" {
		return nil
	}
	return services.NewWahaService(cfg, HTTPClient())
}

// NewTracker returns the GA4 client, or nil when analytics is not configured.
func NewTracker(cfg config.AnalyticsConfig) notify.Tracker {
	if cfg.MeasurementID == "" || cfg.APISecret == "" {
		return nil
	}
	return services.NewAnalyticsService(cfg, HTTPClient())
}

// NewMailer returns the configured mailer, or nil when neither SMTP nor
// Mailgun is set up.
func NewMailer(cfg config.EmailConfig) notify.Mailer {
	if cfg.SMTPHost == "" && (cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "") {
		return nil
	}
	return services.NewMailer(cfg)
}
