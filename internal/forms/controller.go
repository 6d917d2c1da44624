// Package forms holds the controllers behind the site's forms. Each one
// validates the input, writes through the store with retries, queues the
// follow-up notifications and turns the result into an Outcome for the
// visitor.
package forms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/internal/notify"
	"foundation_site/internal/retry"
	"foundation_site/internal/services"
	"foundation_site/internal/store"
	"foundation_site/internal/validation"
)

// Store is the part of store.Gateway the controllers write through.
type Store interface {
	InsertContact(ctx context.Context, c *models.ContactSubmission) error
	InsertSubscription(ctx context.Context, s *models.NewsletterSubscription) error
	SetSubscriptionActive(ctx context.Context, email string, active bool) error
	InsertVolunteer(ctx context.Context, v *models.VolunteerRegistration) error
	InsertApplication(ctx context.Context, a *models.ProgramApplication) error
	InsertDonation(ctx context.Context, d *models.Donation) error
}

// Payments starts a gateway checkout for a stored donation.
type Payments interface {
	InitiateDonationPayment(ctx context.Context, d *models.Donation) (*services.PaymentResponse, error)
	RecordSession(ctx context.Context, d *models.Donation, resp *services.PaymentResponse) error
}

// Notifier queues follow-up notifications without waiting for them.
type Notifier interface {
	Dispatch(n notify.Notification) bool
}

// Guard short-circuits a second submission of the same idempotency key
// while the first is still fresh.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Meta is request context that is not part of the form itself.
type Meta struct {
	// IdempotencyKey is client supplied; a fresh one is generated if empty.
	IdempotencyKey string
	// ClientID attributes analytics events.
	ClientID string
}

type Config struct {
	Retry      retry.Policy
	Messages   notify.Messages
	GuardTTL   time.Duration
	Production bool
}

type Controller struct {
	store    Store
	payments Payments
	notifier Notifier
	guard    Guard
	cfg      Config
	log      *zap.Logger
	newKey   func() string
}

// NewController wires the controllers. payments and guard may be nil: the
// donation form then reports a configuration error, and double submits are
// only deduplicated by the store.
func NewController(st Store, payments Payments, notifier Notifier, guard Guard, cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = 30 * time.Second
	}
	return &Controller{
		store:    st,
		payments: payments,
		notifier: notifier,
		guard:    guard,
		cfg:      cfg,
		log:      log.Named("forms"),
		newKey:   uuid.NewString,
	}
}

func (c *Controller) SubmitContact(ctx context.Context, f validation.ContactForm, meta Meta) Outcome {
	rec, v := validated[*models.ContactSubmission](f)
	if v != nil {
		return contactCopy.invalid(v)
	}
	return c.submit(ctx, submission{
		kind: f.Kind(),
		copy: contactCopy,
		meta: meta,
		row:  rec,
		insert: func(ctx context.Context) error {
			return c.store.InsertContact(ctx, rec)
		},
		notification: c.cfg.Messages.Contact(rec),
	})
}

func (c *Controller) Subscribe(ctx context.Context, f validation.NewsletterForm, meta Meta) Outcome {
	rec, v := validated[*models.NewsletterSubscription](f)
	if v != nil {
		return newsletterCopy.invalid(v)
	}
	return c.submit(ctx, submission{
		kind: f.Kind(),
		copy: newsletterCopy,
		meta: meta,
		row:  rec,
		insert: func(ctx context.Context) error {
			return c.store.InsertSubscription(ctx, rec)
		},
		notification: c.cfg.Messages.Subscription(rec),
	})
}

// Unsubscribe deactivates a subscription. An address that was never
// subscribed gets the same answer, so the form cannot be used to probe the
// mailing list.
func (c *Controller) Unsubscribe(ctx context.Context, email string) Outcome {
	rec, v := validated[*models.NewsletterSubscription](validation.NewsletterForm{Email: email})
	if v != nil {
		return unsubscribeCopy.invalid(v)
	}

	err := retry.Run(ctx, c.cfg.Retry, func(ctx context.Context) error {
		return c.store.SetSubscriptionActive(ctx, rec.Email, false)
	})
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return c.failure(validation.KindNewsletter, unsubscribeCopy, err)
	}
	return unsubscribeCopy.success(nil)
}

func (c *Controller) RegisterVolunteer(ctx context.Context, f validation.VolunteerForm, meta Meta) Outcome {
	rec, v := validated[*models.VolunteerRegistration](f)
	if v != nil {
		return volunteerCopy.invalid(v)
	}
	return c.submit(ctx, submission{
		kind: f.Kind(),
		copy: volunteerCopy,
		meta: meta,
		row:  rec,
		insert: func(ctx context.Context) error {
			return c.store.InsertVolunteer(ctx, rec)
		},
		notification: c.cfg.Messages.Volunteer(rec),
	})
}

func (c *Controller) SubmitApplication(ctx context.Context, f validation.ApplicationForm, meta Meta) Outcome {
	rec, v := validated[*models.ProgramApplication](f)
	if v != nil {
		return applicationCopy.invalid(v)
	}
	return c.submit(ctx, submission{
		kind: f.Kind(),
		copy: applicationCopy,
		meta: meta,
		row:  rec,
		insert: func(ctx context.Context) error {
			return c.store.InsertApplication(ctx, rec)
		},
		notification: c.cfg.Messages.Application(rec),
	})
}

// Donate stores a pending donation and sends the donor to the gateway. The
// donation status is left to the payment webhook.
func (c *Controller) Donate(ctx context.Context, f validation.DonationForm, meta Meta) Outcome {
	rec, v := validated[*models.Donation](f)
	if v != nil {
		return donationCopy.invalid(v)
	}
	if c.payments == nil {
		return c.failure(validation.KindDonation, donationCopy,
			apperror.Configuration("no payment gateway configured: set PAYMENT_PROVIDER and its credentials"))
	}

	key, claimed, dup := c.claim(ctx, meta, validation.KindDonation)
	if dup {
		return donationCopy.duplicate()
	}
	rec.SetIdempotencyKey(key)

	err := retry.Run(ctx, c.cfg.Retry, func(ctx context.Context) error {
		return c.store.InsertDonation(ctx, rec)
	})
	if err != nil {
		c.release(validation.KindDonation, claimed, key)
		return c.failure(validation.KindDonation, donationCopy, err)
	}

	resp, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (*services.PaymentResponse, error) {
		return c.payments.InitiateDonationPayment(ctx, rec)
	})
	if err != nil {
		c.release(validation.KindDonation, claimed, key)
		return c.failure(validation.KindDonation, donationCopy, err)
	}

	if err := c.payments.RecordSession(ctx, rec, resp); err != nil {
		c.log.Warn("record payment session",
			zap.String("donation_id", rec.ID),
			zap.String("transaction_id", resp.TransactionID),
			zap.Error(err),
		)
	}

	c.notify(meta, c.cfg.Messages.DonationInitiated(rec))

	out := donationCopy.success(rec)
	out.RedirectURL = resp.PaymentURL
	return out
}

// validated runs f through validation.Validate and hands back the record
// type of its kind.
func validated[R models.Record](f validation.Form) (R, validation.Violations) {
	var zero R
	rec, v := validation.Validate(f)
	if v != nil {
		return zero, v
	}
	out, ok := rec.(R)
	if !ok {
		return zero, validation.Violations{"form": fmt.Sprintf("unexpected record for %s form", f.Kind())}
	}
	return out, nil
}

// submission is one insert-then-notify form flow.
type submission struct {
	kind         validation.Kind
	copy         formCopy
	meta         Meta
	row          models.Insertable
	insert       func(ctx context.Context) error
	notification notify.Notification
}

func (c *Controller) submit(ctx context.Context, s submission) Outcome {
	key, claimed, dup := c.claim(ctx, s.meta, s.kind)
	if dup {
		return s.copy.duplicate()
	}
	s.row.SetIdempotencyKey(key)

	if err := retry.Run(ctx, c.cfg.Retry, s.insert); err != nil {
		c.release(s.kind, claimed, key)
		return c.failure(s.kind, s.copy, err)
	}

	c.notify(s.meta, s.notification)
	return s.copy.success(s.row)
}

// claim fixes the idempotency key before any attempt is made. dup reports a
// fresh second submission of a client-supplied key.
func (c *Controller) claim(ctx context.Context, meta Meta, kind validation.Kind) (key string, claimed, dup bool) {
	key = meta.IdempotencyKey
	if key == "" {
		return c.newKey(), false, false
	}
	if c.guard == nil {
		return key, false, false
	}

	ok, err := c.guard.Claim(ctx, guardKey(kind, key), c.cfg.GuardTTL)
	if err != nil {
		c.log.Warn("idempotency guard unavailable", zap.String("form", string(kind)), zap.Error(err))
		return key, false, false
	}
	if !ok {
		c.log.Info("duplicate submission", zap.String("form", string(kind)), zap.String("idempotency_key", key))
		return key, false, true
	}
	return key, true, false
}

// release lets the visitor retry a failed submission with the same key.
func (c *Controller) release(kind validation.Kind, claimed bool, key string) {
	if !claimed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.guard.Release(ctx, guardKey(kind, key)); err != nil {
		c.log.Warn("release idempotency guard", zap.String("form", string(kind)), zap.Error(err))
	}
}

func guardKey(kind validation.Kind, key string) string {
	return "submit:" + string(kind) + ":" + key
}

func (c *Controller) notify(meta Meta, n notify.Notification) {
	if c.notifier == nil {
		return
	}
	if n.ClientID == "" {
		n.ClientID = meta.ClientID
	}
	if n.ClientID == "" {
		n.ClientID = c.newKey()
	}
	c.notifier.Dispatch(n)
}

// failure turns an error into the visitor-facing outcome and logs it.
func (c *Controller) failure(kind validation.Kind, text formCopy, err error) Outcome {
	out := Outcome{
		Kind:        apperror.KindOf(err),
		Title:       text.errorTitle,
		Description: text.errorDesc,
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		out.Kind = apperror.KindTransient
	}

	fields := []zap.Field{zap.String("form", string(kind)), zap.String("kind", string(out.Kind)), zap.Error(err)}
	switch out.Kind {
	case apperror.KindConflict:
		if ae, ok := apperror.As(err); ok && ae.Message == store.MsgAlreadySubscribed {
			out.Description = store.MsgAlreadySubscribed
		}
		c.log.Info("submission conflict", fields...)
	case apperror.KindConfiguration:
		if kind == validation.KindDonation {
			out.Description = msgPaymentsDisabled
		}
		c.log.Error("operator action required", fields...)
	case apperror.KindRateLimit:
		out.Description = msgBusy
		c.log.Warn("submission rate limited", fields...)
	default:
		c.log.Error("submission failed", fields...)
	}

	if !c.cfg.Production {
		out.Detail = err.Error()
	}
	return out
}
