package store

import (
	"context"
	"fmt"
	"time"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
)

// MsgAlreadySubscribed is shown when a newsletter email is stored already.
const MsgAlreadySubscribed = "This email is already subscribed to our newsletter."

// DefaultListLimit applies when a caller passes a non-positive limit.
const DefaultListLimit = 10

// Gateway exposes the site's collections as typed operations.
type Gateway struct {
	backend Backend
	now     func() time.Time
}

func NewGateway(backend Backend) *Gateway {
	return &Gateway{backend: backend, now: time.Now}
}

// DonationTotals sums completed donations. Total adds amounts across
// currencies, which is what the public counter shows.
type DonationTotals struct {
	Total      float64            `json:"total"`
	Count      int                `json:"count"`
	ByCurrency map[string]float64 `json:"by_currency"`
}

// PaymentUpdate carries what a gateway reported about a donation.
type PaymentUpdate struct {
	Status    models.PaymentStatus
	Reference string
	Method    string
}

func (g *Gateway) insert(ctx context.Context, row models.Insertable) error {
	if err := g.backend.Insert(ctx, row); err != nil {
		return fmt.Errorf("insert %s: %w", row.TableName(), err)
	}
	return nil
}

func (g *Gateway) InsertContact(ctx context.Context, c *models.ContactSubmission) error {
	return g.insert(ctx, c)
}

// InsertSubscription stores a newsletter subscription. An email that is
// already stored is reported as a conflict carrying MsgAlreadySubscribed.
func (g *Gateway) InsertSubscription(ctx context.Context, s *models.NewsletterSubscription) error {
	if s.SubscribedAt == nil {
		now := g.now()
		s.SubscribedAt = &now
	}
	s.IsActive = true

	err := g.backend.Insert(ctx, s)
	if err == nil {
		return nil
	}
	if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindConflict {
		return &apperror.Error{
			Kind:    apperror.KindConflict,
			Code:    ae.Code,
			Status:  ae.Status,
			Message: MsgAlreadySubscribed,
			Err:     err,
		}
	}
	return fmt.Errorf("insert %s: %w", s.TableName(), err)
}

func (g *Gateway) InsertVolunteer(ctx context.Context, v *models.VolunteerRegistration) error {
	return g.insert(ctx, v)
}

func (g *Gateway) InsertApplication(ctx context.Context, a *models.ProgramApplication) error {
	return g.insert(ctx, a)
}

// InsertDonation stores a donation. Its status is always pending on insert.
func (g *Gateway) InsertDonation(ctx context.Context, d *models.Donation) error {
	d.PaymentStatus = models.PaymentStatusPending
	return g.insert(ctx, d)
}

func (g *Gateway) InsertPaymentSession(ctx context.Context, s *models.PaymentSession) error {
	return g.insert(ctx, s)
}

func (g *Gateway) InsertPaymentCallback(ctx context.Context, h *models.PaymentCallbackHistory) error {
	return g.insert(ctx, h)
}

// SetSubscriptionActive flips the active flag for email. Deactivating stamps
// unsubscribed_at. It returns a not_found error when no row matched.
func (g *Gateway) SetSubscriptionActive(ctx context.Context, email string, active bool) error {
	now := g.now()
	values := map[string]any{"is_active": active, "updated_at": now}
	if active {
		values["unsubscribed_at"] = nil
		values["subscribed_at"] = now
	} else {
		values["unsubscribed_at"] = now
	}

	table := models.NewsletterSubscription{}.TableName()
	n, err := g.backend.Update(ctx, table, []Filter{Eq("email", email)}, values)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n == 0 {
		return apperror.New(apperror.KindNotFound, "no subscription for "+email)
	}
	return nil
}

// TransitionDonation moves a pending donation to update.Status. It reports
// false when the donation was no longer pending, so repeated webhooks are
// harmless.
func (g *Gateway) TransitionDonation(ctx context.Context, id string, update PaymentUpdate) (bool, error) {
	if update.Status == models.PaymentStatusPending {
		return false, apperror.New(apperror.KindBadRequest, "cannot transition a donation to pending")
	}
	values := map[string]any{"payment_status": update.Status, "updated_at": g.now()}
	if update.Reference != "" {
		values["payment_reference"] = update.Reference
	}
	if update.Method != "" {
		values["payment_method"] = update.Method
	}

	table := models.Donation{}.TableName()
	n, err := g.backend.Update(ctx, table, []Filter{
		Eq("id", id),
		Eq("payment_status", models.PaymentStatusPending),
	}, values)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", table, err)
	}
	return n > 0, nil
}

// SetDonationReference records the gateway reference of a pending donation
// without touching its status.
func (g *Gateway) SetDonationReference(ctx context.Context, id, reference, method string) error {
	values := map[string]any{"payment_reference": reference, "updated_at": g.now()}
	if method != "" {
		values["payment_method"] = method
	}
	table := models.Donation{}.TableName()
	if _, err := g.backend.Update(ctx, table, []Filter{Eq("id", id)}, values); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

func (g *Gateway) FindDonation(ctx context.Context, id string) (*models.Donation, error) {
	rows, err := list[models.Donation](ctx, g.backend, Query{Filters: []Filter{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.New(apperror.KindNotFound, "donation "+id+" not found")
	}
	return &rows[0], nil
}

// RecentDonations lists completed donations, newest first, with anonymous
// donors' names removed.
func (g *Gateway) RecentDonations(ctx context.Context, limit int) ([]models.DonationSummary, error) {
	rows, err := list[models.Donation](ctx, g.backend, Query{
		Columns:    []string{"donor_name", "amount", "currency", "created_at", "is_anonymous"},
		Filters:    []Filter{Eq("payment_status", models.PaymentStatusCompleted)},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      limitOrDefault(limit),
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]models.DonationSummary, 0, len(rows))
	for _, d := range rows {
		s := models.DonationSummary{
			Amount:      d.Amount,
			Currency:    d.Currency,
			CreatedAt:   d.CreatedAt,
			IsAnonymous: d.IsAnonymous,
		}
		if !d.IsAnonymous {
			s.DonorName = d.DonorName
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (g *Gateway) TotalDonations(ctx context.Context) (DonationTotals, error) {
	rows, err := list[models.Donation](ctx, g.backend, Query{
		Columns: []string{"amount", "currency"},
		Filters: []Filter{Eq("payment_status", models.PaymentStatusCompleted)},
	})
	if err != nil {
		return DonationTotals{}, err
	}

	totals := DonationTotals{ByCurrency: make(map[string]float64)}
	for _, d := range rows {
		totals.Total += d.Amount
		totals.ByCurrency[d.Currency] += d.Amount
		totals.Count++
	}
	return totals, nil
}

// PendingDonations lists donations still pending that were created before
// cutoff, oldest first.
func (g *Gateway) PendingDonations(ctx context.Context, cutoff time.Time, limit int) ([]models.Donation, error) {
	return list[models.Donation](ctx, g.backend, Query{
		Filters: []Filter{
			Eq("payment_status", models.PaymentStatusPending),
			{Column: "created_at", Op: OpLt, Value: cutoff},
		},
		OrderBy: "created_at",
		Limit:   limitOrDefault(limit),
	})
}

// FindPaymentSession returns the active session for a gateway transaction.
func (g *Gateway) FindPaymentSession(ctx context.Context, gateway models.PaymentGateway, transactionID string) (*models.PaymentSession, error) {
	rows, err := list[models.PaymentSession](ctx, g.backend, Query{
		Filters: []Filter{
			Eq("payment_gateway", gateway),
			Eq("transaction_id", transactionID),
		},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.New(apperror.KindNotFound, "payment session "+transactionID+" not found")
	}
	return &rows[0], nil
}

// LatestPaymentSession returns the most recent session of a donation.
func (g *Gateway) LatestPaymentSession(ctx context.Context, donationID string) (*models.PaymentSession, error) {
	rows, err := list[models.PaymentSession](ctx, g.backend, Query{
		Filters:    []Filter{Eq("donation_id", donationID)},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.New(apperror.KindNotFound, "no payment session for donation "+donationID)
	}
	return &rows[0], nil
}

func (g *Gateway) PublishedPosts(ctx context.Context, limit int) ([]models.BlogPost, error) {
	return list[models.BlogPost](ctx, g.backend, Query{
		Filters:    []Filter{Eq("is_published", true)},
		OrderBy:    "published_at",
		Descending: true,
		Limit:      limitOrDefault(limit),
	})
}

func (g *Gateway) PostsByCategory(ctx context.Context, category string) ([]models.BlogPost, error) {
	return list[models.BlogPost](ctx, g.backend, Query{
		Filters:    []Filter{Eq("is_published", true), Eq("category", category)},
		OrderBy:    "published_at",
		Descending: true,
	})
}

// PostBySlug returns a published post. View counting is left to the caller
// through IncrementPostViews.
func (g *Gateway) PostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	rows, err := list[models.BlogPost](ctx, g.backend, Query{
		Filters: []Filter{Eq("slug", slug), Eq("is_published", true)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.New(apperror.KindNotFound, "post "+slug+" not found")
	}
	return &rows[0], nil
}

func (g *Gateway) IncrementPostViews(ctx context.Context, id string) error {
	table := models.BlogPost{}.TableName()
	if err := g.backend.Increment(ctx, table, id, "views_count"); err != nil {
		return fmt.Errorf("increment %s views: %w", table, err)
	}
	return nil
}

func (g *Gateway) Testimonials(ctx context.Context, featuredOnly bool) ([]models.Testimonial, error) {
	filters := []Filter{Eq("is_published", true)}
	if featuredOnly {
		filters = append(filters, Eq("is_featured", true))
	}
	return list[models.Testimonial](ctx, g.backend, Query{
		Filters:    filters,
		OrderBy:    "created_at",
		Descending: true,
	})
}

// UpcomingEvents lists published events starting from now, soonest first.
func (g *Gateway) UpcomingEvents(ctx context.Context) ([]models.Event, error) {
	return list[models.Event](ctx, g.backend, Query{
		Filters: []Filter{
			Eq("is_published", true),
			{Column: "start_date", Op: OpGte, Value: g.now()},
		},
		OrderBy: "start_date",
	})
}

func (g *Gateway) RecentContacts(ctx context.Context, limit int) ([]models.ContactSubmission, error) {
	return recent[models.ContactSubmission](ctx, g.backend, limit)
}

func (g *Gateway) RecentSubscriptions(ctx context.Context, limit int) ([]models.NewsletterSubscription, error) {
	return recent[models.NewsletterSubscription](ctx, g.backend, limit)
}

func (g *Gateway) RecentVolunteers(ctx context.Context, limit int) ([]models.VolunteerRegistration, error) {
	return recent[models.VolunteerRegistration](ctx, g.backend, limit)
}

func (g *Gateway) RecentApplications(ctx context.Context, limit int) ([]models.ProgramApplication, error) {
	return recent[models.ProgramApplication](ctx, g.backend, limit)
}

func (g *Gateway) RecentAllDonations(ctx context.Context, limit int) ([]models.Donation, error) {
	return recent[models.Donation](ctx, g.backend, limit)
}

func recent[T models.Record](ctx context.Context, b Backend, limit int) ([]T, error) {
	return list[T](ctx, b, Query{OrderBy: "created_at", Descending: true, Limit: limitOrDefault(limit)})
}

func list[T models.Record](ctx context.Context, b Backend, q Query) ([]T, error) {
	var zero T
	table := zero.TableName()
	var rows []T
	if err := b.Select(ctx, table, q, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
