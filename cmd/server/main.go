package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"foundation_site/internal/bootstrap"
	"foundation_site/internal/config"
	"foundation_site/internal/forms"
	"foundation_site/internal/handlers"
	"foundation_site/internal/middleware"
	"foundation_site/internal/models"
	"foundation_site/internal/notify"
	"foundation_site/internal/retry"
	"foundation_site/internal/services"
	"foundation_site/web/pages"
)

const shutdownTimeout = 15 * time.Second

func main() {
	dotenv := config.LoadDotenv()
	cfg := config.Load()

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if !dotenv {
		log.Info("no .env file found, using system environment")
	}
	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, db, err := bootstrap.OpenStore(cfg.Store, log)
	if err != nil {
		return err
	}
	if db != nil {
		if err := services.AutoMigrate(db, log); err != nil {
			return err
		}
	}

	var cache *services.RedisCache
	var guard forms.Guard
	if cfg.RedisURL != "" {
		if cache, err = services.NewRedisCache(cfg.RedisURL, log); err != nil {
			log.Warn("redis unavailable, caching disabled", zap.Error(err))
			cache = nil
		} else {
			guard = cache
		}
	} else {
		log.Warn("REDIS_URL not set, caching disabled")
	}

	var verifier middleware.SessionVerifier
	var issuer handlers.SessionIssuer
	if authClient, err := services.InitFirebase(ctx, cfg.Firebase.CredentialsPath); err != nil {
		log.Warn("firebase initialization failed, staff sign in disabled", zap.Error(err))
	} else {
		verifier, issuer = authClient, authClient
	}

	dispatcher := notify.NewDispatcher(notify.Options{
		Mailer:      bootstrap.NewMailer(cfg.Email),
		Tracker:     bootstrap.NewTracker(cfg.Analytics),
		Alerter:     bootstrap.NewAlerter(cfg.Waha),
		AdminEmail:  cfg.Email.AdminEmail,
		AdminChatID: cfg.Waha.AdminChatID,
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
	}, log)

	supportEmail := cfg.Email.AdminEmail
	if supportEmail == "" {
		supportEmail = cfg.Email.From
	}
	messages := notify.Messages{AppName: cfg.AppName, AppURL: cfg.AppURL, SupportEmail: supportEmail}

	content := handlers.NewContent(gw, cache, log)

	var formPayments forms.Payments
	var apiPayments handlers.Payments
	client, parse := bootstrap.NewPaymentClient(cfg.Payment, log)
	if client != nil {
		svc := services.NewPaymentService(gw, client, cfg.Payment.ReturnURL, cfg.Payment.WebhookURL, log)
		svc.OnSettled = func(ctx context.Context, d *models.Donation) {
			content.InvalidateDonations(ctx)
			if d.PaymentStatus == models.PaymentStatusCompleted {
				dispatcher.Dispatch(messages.DonationCompleted(d))
			}
		}
		formPayments, apiPayments = svc, svc
	}

	controller := forms.NewController(gw, formPayments, dispatcher, guard, forms.Config{
		Retry:      retry.Policy{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay},
		Messages:   messages,
		Production: cfg.IsProduction(),
	}, log)

	site := pages.Site{AppName: cfg.AppName, AppURL: cfg.AppURL, Year: time.Now().Year()}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.NewErrorHandler(site, log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.RateLimit(cfg.RateLimit))

	pageHandler := handlers.NewPageHandler(content, site, cfg.Payment.MidtransClientKey, log)
	contentHandler := handlers.NewContentHandler(content)
	formHandler := handlers.NewFormHandler(controller)
	paymentHandler := handlers.NewPaymentHandler(apiPayments, parse, log)
	authHandler := handlers.NewAuthHandler(issuer, cfg.Firebase, site, cfg.IsProduction(), log)
	adminHandler := handlers.NewAdminHandler(gw, site)

	// Pages
	e.GET("/", pageHandler.Home)
	for _, name := range []string{"about", "programs", "contact", "volunteer", "apply", "privacy", "terms", "unsubscribe"} {
		e.GET("/"+name, pageHandler.Static(name))
	}
	e.GET("/blog", pageHandler.Blog)
	e.GET("/blog/:slug", pageHandler.BlogPost)
	e.GET("/donate", pageHandler.Donate)
	e.RouteNotFound("/*", pageHandler.NotFound)

	// Staff
	e.GET("/login", authHandler.LoginPage)
	e.POST("/auth/login", authHandler.HandleLogin)
	e.POST("/auth/logout", authHandler.HandleLogout)
	admin := e.Group("/admin", middleware.RequireAuth(verifier))
	admin.GET("", adminHandler.Submissions)
	admin.GET("/submissions", adminHandler.Submissions)

	// API
	api := e.Group("/api")
	api.POST("/contact", formHandler.Contact)
	api.POST("/newsletter", formHandler.Newsletter)
	api.POST("/newsletter/unsubscribe", formHandler.Unsubscribe)
	api.POST("/volunteer", formHandler.Volunteer)
	api.POST("/apply", formHandler.Apply)
	api.POST("/donations", formHandler.Donate)
	api.POST("/payments/verify", paymentHandler.Verify)
	api.POST("/webhooks/:gateway", paymentHandler.Webhook)

	api.GET("/blog", contentHandler.Posts)
	api.GET("/blog/:slug", contentHandler.Post)
	api.GET("/testimonials", contentHandler.Testimonials)
	api.GET("/events", contentHandler.Events)
	api.GET("/donations/recent", contentHandler.RecentDonations)
	api.GET("/donations/total", contentHandler.TotalDonations)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := e.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if cache != nil {
			if err := cache.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		stats := dispatcher.Stats()
		log.Info("notifications drained",
			zap.Int64("delivered", stats.Delivered),
			zap.Int64("failed", stats.Failed),
			zap.Int64("dropped", stats.Dropped),
		)
		return errors.Join(errs...)
	})
	return g.Wait()
}
