package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/internal/services"
	"foundation_site/internal/store"
)

// ReconcileStore is the part of store.Gateway the reconciliation needs.
type ReconcileStore interface {
	PendingDonations(ctx context.Context, cutoff time.Time, limit int) ([]models.Donation, error)
	LatestPaymentSession(ctx context.Context, donationID string) (*models.PaymentSession, error)
	TransitionDonation(ctx context.Context, id string, update store.PaymentUpdate) (bool, error)
}

// Verifier applies the gateway's view of a transaction to its donation.
// services.PaymentService implements it.
type Verifier interface {
	Verify(ctx context.Context, transactionID string) (*services.PaymentVerification, error)
}

// ReconcileArgs tune a reconcile_donations run.
type ReconcileArgs struct {
	// OlderThanMinutes skips donations whose donor may still be paying.
	OlderThanMinutes int `json:"older_than_minutes"`
	// FailAfterHours marks donations failed when the gateway still has no
	// record of them after this long.
	FailAfterHours int `json:"fail_after_hours"`
	Limit          int `json:"limit"`
}

func (a *ReconcileArgs) defaults() {
	if a.OlderThanMinutes <= 0 {
		a.OlderThanMinutes = 15
	}
	if a.FailAfterHours <= 0 {
		a.FailAfterHours = 24
	}
	if a.Limit <= 0 {
		a.Limit = 50
	}
}

// ReconcileDonationsTask catches donations whose webhook never arrived by
// asking the gateway directly.
type ReconcileDonationsTask struct {
	store    ReconcileStore
	verifier Verifier
	log      *zap.Logger
	now      func() time.Time
}

func NewReconcileDonationsTask(st ReconcileStore, verifier Verifier, log *zap.Logger) *ReconcileDonationsTask {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileDonationsTask{store: st, verifier: verifier, log: log.Named("reconcile"), now: time.Now}
}

func (t *ReconcileDonationsTask) TaskID() string {
	return "reconcile_donations"
}

// CreateTask builds the recurring task record; rule is an RFC 5545 RRULE.
func (t *ReconcileDonationsTask) CreateTask(args ReconcileArgs, rule string) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, time.Now(), &rule, models.ScheduledTaskTypeRecurring, 3)
}

type reconcileResult struct {
	checked, completed, failed, pending, errors int
}

func (t *ReconcileDonationsTask) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args ReconcileArgs
	if err := parseArgs(task, &args); err != nil {
		return nil, err
	}
	args.defaults()
	if t.verifier == nil {
		return nil, apperror.Configuration("reconcile_donations needs a payment gateway")
	}

	now := t.now()
	cutoff := now.Add(-time.Duration(args.OlderThanMinutes) * time.Minute)
	expiry := now.Add(-time.Duration(args.FailAfterHours) * time.Hour)

	donations, err := t.store.PendingDonations(ctx, cutoff, args.Limit)
	if err != nil {
		return nil, fmt.Errorf("list pending donations: %w", err)
	}

	var res reconcileResult
	for _, d := range donations {
		if ctx.Err() != nil {
			break
		}
		res.checked++
		status, err := t.reconcile(ctx, d, expiry)
		switch {
		case err != nil:
			res.errors++
			t.log.Warn("reconcile donation", zap.String("donation_id", d.ID), zap.Error(err))
		case status == models.PaymentStatusCompleted:
			res.completed++
		case status == models.PaymentStatusFailed:
			res.failed++
		default:
			res.pending++
		}
	}

	result := map[string]interface{}{
		"checked":   res.checked,
		"completed": res.completed,
		"failed":    res.failed,
		"pending":   res.pending,
		"errors":    res.errors,
	}
	if res.errors > 0 && res.errors == res.checked {
		return result, fmt.Errorf("all %d donations failed to reconcile", res.errors)
	}
	return result, nil
}

// reconcile returns the status the donation ends up in.
func (t *ReconcileDonationsTask) reconcile(ctx context.Context, d models.Donation, expiry time.Time) (models.PaymentStatus, error) {
	session, err := t.store.LatestPaymentSession(ctx, d.ID)
	if apperror.Is(err, apperror.KindNotFound) {
		return t.expire(ctx, d, expiry, "no payment session")
	}
	if err != nil {
		return "", err
	}

	txID := session.TransactionID
	if txID == "" {
		txID = session.Reference
	}
	v, err := t.verifier.Verify(ctx, txID)
	if apperror.Is(err, apperror.KindNotFound) {
		return t.expire(ctx, d, expiry, "unknown to gateway")
	}
	if err != nil {
		return "", err
	}
	if v.Status == models.PaymentStatusPending {
		return t.expire(ctx, d, expiry, "still pending at gateway")
	}
	return v.Status, nil
}

// expire fails a donation once it is older than expiry.
func (t *ReconcileDonationsTask) expire(ctx context.Context, d models.Donation, expiry time.Time, reason string) (models.PaymentStatus, error) {
	if d.CreatedAt.After(expiry) {
		return models.PaymentStatusPending, nil
	}
	if _, err := t.store.TransitionDonation(ctx, d.ID, store.PaymentUpdate{Status: models.PaymentStatusFailed}); err != nil {
		return "", err
	}
	t.log.Info("donation expired", zap.String("donation_id", d.ID), zap.String("reason", reason))
	return models.PaymentStatusFailed, nil
}
