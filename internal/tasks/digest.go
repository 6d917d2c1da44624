package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"foundation_site/internal/models"
	"foundation_site/internal/notify"
)

const (
	ChannelEmail    = "email"
	ChannelWhatsapp = "whatsapp"

	digestScanLimit = 200
)

// DigestStore lists the most recent rows of each submission collection.
type DigestStore interface {
	RecentContacts(ctx context.Context, limit int) ([]models.ContactSubmission, error)
	RecentSubscriptions(ctx context.Context, limit int) ([]models.NewsletterSubscription, error)
	RecentVolunteers(ctx context.Context, limit int) ([]models.VolunteerRegistration, error)
	RecentApplications(ctx context.Context, limit int) ([]models.ProgramApplication, error)
	RecentAllDonations(ctx context.Context, limit int) ([]models.Donation, error)
}

// Scheduler persists a follow-up task.
type Scheduler interface {
	Create(ctx context.Context, task *models.ScheduledTask) error
}

// DigestArgs defines the arguments for an admin_digest task
type DigestArgs struct {
	Hours        int      `json:"hours"`
	Channels     []string `json:"channels"`
	AttemptCount int      `json:"attempt_count"`
}

// DigestConfig addresses the digest.
type DigestConfig struct {
	AppName     string
	AppURL      string
	AdminEmail  string
	AdminChatID string
}

// AdminDigestTask sends staff a summary of what came in over the last hours.
type AdminDigestTask struct {
	store     DigestStore
	scheduler Scheduler
	mailer    notify.Mailer
	alerter   notify.Alerter
	cfg       DigestConfig
	log       *zap.Logger
	now       func() time.Time
}

func NewAdminDigestTask(st DigestStore, scheduler Scheduler, mailer notify.Mailer, alerter notify.Alerter, cfg DigestConfig, log *zap.Logger) *AdminDigestTask {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminDigestTask{
		store:     st,
		scheduler: scheduler,
		mailer:    mailer,
		alerter:   alerter,
		cfg:       cfg,
		log:       log.Named("digest"),
		now:       time.Now,
	}
}

func (t *AdminDigestTask) TaskID() string {
	return "admin_digest"
}

// CreateTask builds a recurring digest; rule is an RFC 5545 RRULE.
func (t *AdminDigestTask) CreateTask(args DigestArgs, due time.Time, rule string) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, due, &rule, models.ScheduledTaskTypeRecurring, 3)
}

// Digest counts the submissions created since a point in time.
type Digest struct {
	Since        time.Time
	Contacts     int
	Subscribers  int
	Volunteers   int
	Applications int
	Donations    int
	Completed    int
	Raised       map[string]float64
}

func (d Digest) Empty() bool {
	return d.Contacts+d.Subscribers+d.Volunteers+d.Applications+d.Donations == 0
}

func (t *AdminDigestTask) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args DigestArgs
	if err := parseArgs(task, &args); err != nil {
		return nil, err
	}
	if args.Hours <= 0 {
		args.Hours = 24
	}
	if len(args.Channels) == 0 {
		args.Channels = []string{ChannelEmail, ChannelWhatsapp}
	}

	since := t.now().Add(-time.Duration(args.Hours) * time.Hour)
	digest, err := t.collect(ctx, since)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"since":        since.Format(time.RFC3339),
		"contacts":     digest.Contacts,
		"subscribers":  digest.Subscribers,
		"volunteers":   digest.Volunteers,
		"applications": digest.Applications,
		"donations":    digest.Donations,
	}
	if digest.Empty() {
		result["skipped"] = "nothing new"
		return result, nil
	}

	subject, body := t.render(digest, args.Hours)
	var failed []string
	var failures []string
	for _, channel := range args.Channels {
		if err := t.send(ctx, channel, subject, body); err != nil {
			t.log.Warn("digest delivery failed", zap.String("channel", channel), zap.Error(err))
			failed = append(failed, channel)
			failures = append(failures, fmt.Sprintf("%s: %v", channel, err))
		}
	}
	result["sent"] = len(args.Channels) - len(failed)

	if len(failed) == 0 {
		return result, nil
	}
	result["errors"] = failures

	if args.AttemptCount >= task.MaxAttempt || t.scheduler == nil {
		return result, fmt.Errorf("max attempts reached, digest undelivered on %s", strings.Join(failed, ", "))
	}

	retryArgs := args
	retryArgs.Channels = failed
	retryArgs.AttemptCount = args.AttemptCount + 1
	retry, err := BuildScheduledTask(t.TaskID(), retryArgs, t.now().Add(5*time.Minute), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
	if err != nil {
		return result, err
	}
	if err := t.scheduler.Create(ctx, retry); err != nil {
		return result, fmt.Errorf("schedule digest retry: %w", err)
	}
	t.log.Info("digest retry scheduled",
		zap.Strings("channels", failed),
		zap.Int("attempt", retryArgs.AttemptCount),
	)
	result["rescheduled"] = failed
	return result, nil
}

func (t *AdminDigestTask) send(ctx context.Context, channel, subject, body string) error {
	switch channel {
	case ChannelEmail:
		if t.mailer == nil || t.cfg.AdminEmail == "" {
			return fmt.Errorf("email is not configured")
		}
		return t.mailer.SendEmail(ctx, []string{t.cfg.AdminEmail}, subject, body)
	case ChannelWhatsapp:
		if t.alerter == nil || t.cfg.AdminChatID == "" {
			return fmt.Errorf("whatsapp is not configured")
		}
		return t.alerter.SendMessage(ctx, t.cfg.AdminChatID, subject+"\n\n"+body)
	default:
		return fmt.Errorf("unsupported channel %q", channel)
	}
}

// collect loads each collection concurrently and counts rows newer than since.
func (t *AdminDigestTask) collect(ctx context.Context, since time.Time) (Digest, error) {
	d := Digest{Since: since, Raised: map[string]float64{}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := t.store.RecentContacts(gctx, digestScanLimit)
		for _, r := range rows {
			if !r.CreatedAt.Before(since) {
				d.Contacts++
			}
		}
		return err
	})
	g.Go(func() error {
		rows, err := t.store.RecentSubscriptions(gctx, digestScanLimit)
		for _, r := range rows {
			if !r.CreatedAt.Before(since) {
				d.Subscribers++
			}
		}
		return err
	})
	g.Go(func() error {
		rows, err := t.store.RecentVolunteers(gctx, digestScanLimit)
		for _, r := range rows {
			if !r.CreatedAt.Before(since) {
				d.Volunteers++
			}
		}
		return err
	})
	g.Go(func() error {
		rows, err := t.store.RecentApplications(gctx, digestScanLimit)
		for _, r := range rows {
			if !r.CreatedAt.Before(since) {
				d.Applications++
			}
		}
		return err
	})
	g.Go(func() error {
		rows, err := t.store.RecentAllDonations(gctx, digestScanLimit)
		for _, r := range rows {
			if r.CreatedAt.Before(since) {
				continue
			}
			d.Donations++
			if r.PaymentStatus == models.PaymentStatusCompleted {
				d.Completed++
				d.Raised[r.Currency] += r.Amount
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return Digest{}, fmt.Errorf("collect digest: %w", err)
	}
	return d, nil
}

func (t *AdminDigestTask) render(d Digest, hours int) (string, string) {
	subject := fmt.Sprintf("%s digest: last %d hours", t.cfg.AppName, hours)

	var b strings.Builder
	fmt.Fprintf(&b, "Since %s:\n\n", d.Since.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Contact messages: %d\n", d.Contacts)
	fmt.Fprintf(&b, "Newsletter subscribers: %d\n", d.Subscribers)
	fmt.Fprintf(&b, "Volunteer registrations: %d\n", d.Volunteers)
	fmt.Fprintf(&b, "Program applications: %d\n", d.Applications)
	fmt.Fprintf(&b, "Donations: %d (%d completed)\n", d.Donations, d.Completed)
	for _, currency := range sortedKeys(d.Raised) {
		fmt.Fprintf(&b, "  %s %.2f raised\n", currency, d.Raised[currency])
	}
	if t.cfg.AppURL != "" {
		fmt.Fprintf(&b, "\n%s/admin", t.cfg.AppURL)
	}
	return subject, b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
