package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"foundation_site/internal/bootstrap"
	"foundation_site/internal/config"
	"foundation_site/internal/models"
	"foundation_site/internal/services"
	"foundation_site/internal/tasks"
)

const (
	pollInterval = 5 * time.Minute

	reconcileRule = "FREQ=MINUTELY;INTERVAL=15"
	digestRule    = "FREQ=DAILY;BYHOUR=7;BYMINUTE=0;BYSECOND=0"
)

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

	// Scheduled tasks live in Postgres; the REST backend has no worker.
	if cfg.Store.Backend != config.StoreBackendPostgres {
		log.Fatal("the worker needs STORE_BACKEND=postgres and DATABASE_URL")
	}
	gw, db, err := bootstrap.OpenStore(cfg.Store, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	taskStore := tasks.NewGormTaskStore(db)
	deps := tasks.Deps{
		Donations: gw,
		Digest:    gw,
		Scheduler: taskStore,
		Mailer:    bootstrap.NewMailer(cfg.Email),
		Alerter:   bootstrap.NewAlerter(cfg.Waha),
		DigestCfg: tasks.DigestConfig{
			AppName:     cfg.AppName,
			AppURL:      cfg.AppURL,
			AdminEmail:  cfg.Email.AdminEmail,
			AdminChatID: cfg.Waha.AdminChatID,
		},
		Log: log,
	}
	if client, _ := bootstrap.NewPaymentClient(cfg.Payment, log); client != nil {
		deps.Verifier = services.NewPaymentService(gw, client, cfg.Payment.ReturnURL, cfg.Payment.WebhookURL, log)
	}

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seedRecurring(ctx, taskStore, log)

	log.Info("worker started", zap.Strings("tasks", registry.Names()), zap.Duration("interval", pollInterval))
	tasks.NewRunner(taskStore, registry, log).Loop(ctx, pollInterval)
	log.Info("worker stopped")
}

// seedRecurring makes sure the built-in recurring tasks exist.
func seedRecurring(ctx context.Context, st *tasks.GormTaskStore, log *zap.Logger) {
	reconcile, err := tasks.NewReconcileDonationsTask(nil, nil, nil).CreateTask(tasks.ReconcileArgs{}, reconcileRule)
	if err != nil {
		log.Error("build reconcile task", zap.Error(err))
		return
	}
	digest, err := tasks.NewAdminDigestTask(nil, nil, nil, nil, tasks.DigestConfig{}, nil).
		CreateTask(tasks.DigestArgs{Hours: 24}, nextMorning(time.Now()), digestRule)
	if err != nil {
		log.Error("build digest task", zap.Error(err))
		return
	}

	for _, task := range []*models.ScheduledTask{reconcile, digest} {
		created, err := st.EnsureRecurring(ctx, task)
		if err != nil {
			log.Error("seed recurring task", zap.String("task", task.TaskName), zap.Error(err))
			continue
		}
		if created {
			log.Info("seeded recurring task", zap.String("task", task.TaskName), zap.Time("due", task.Due))
		}
	}
}

func nextMorning(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 7, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
