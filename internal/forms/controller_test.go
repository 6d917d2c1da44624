package forms

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/internal/notify"
	"foundation_site/internal/retry"
	"foundation_site/internal/services"
	"foundation_site/internal/store"
	"foundation_site/internal/validation"
)

type fakeStore struct {
	mu    sync.Mutex
	calls int
	keys  []string
	errs  []error

	contacts      []*models.ContactSubmission
	subscriptions []*models.NewsletterSubscription
	donations     []*models.Donation
	deactivated   []string
}

// next records an attempt and pops the next scripted error.
func (s *fakeStore) next(row models.Insertable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if row != nil {
		s.keys = append(s.keys, row.GetIdempotencyKey())
	}
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *fakeStore) InsertContact(_ context.Context, c *models.ContactSubmission) error {
	if err := s.next(c); err != nil {
		return err
	}
	c.ID = "contact-1"
	s.contacts = append(s.contacts, c)
	return nil
}

func (s *fakeStore) InsertSubscription(_ context.Context, n *models.NewsletterSubscription) error {
	if err := s.next(n); err != nil {
		return err
	}
	s.subscriptions = append(s.subscriptions, n)
	return nil
}

func (s *fakeStore) SetSubscriptionActive(_ context.Context, email string, active bool) error {
	if err := s.next(nil); err != nil {
		return err
	}
	s.deactivated = append(s.deactivated, email)
	return nil
}

func (s *fakeStore) InsertVolunteer(_ context.Context, v *models.VolunteerRegistration) error {
	return s.next(v)
}

func (s *fakeStore) InsertApplication(_ context.Context, a *models.ProgramApplication) error {
	return s.next(a)
}

func (s *fakeStore) InsertDonation(_ context.Context, d *models.Donation) error {
	if err := s.next(d); err != nil {
		return err
	}
	d.ID = "don-1"
	s.donations = append(s.donations, d)
	return nil
}

type fakePayments struct {
	calls    int
	err      error
	resp     *services.PaymentResponse
	sessions int
	seen     *models.Donation
}

func (p *fakePayments) InitiateDonationPayment(_ context.Context, d *models.Donation) (*services.PaymentResponse, error) {
	p.calls++
	p.seen = d
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

func (p *fakePayments) RecordSession(context.Context, *models.Donation, *services.PaymentResponse) error {
	p.sessions++
	return errors.New("session table unavailable")
}

type fakeNotifier struct {
	accept bool
	sent   []notify.Notification
}

func (n *fakeNotifier) Dispatch(x notify.Notification) bool {
	n.sent = append(n.sent, x)
	return n.accept
}

type fakeGuard struct {
	claimed  map[string]bool
	released []string
	err      error
}

func (g *fakeGuard) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	delete(g.claimed, key)
	g.released = append(g.released, key)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig() Config {
	return Config{
		Retry:    retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Sleep: noSleep},
		Messages: notify.Messages{AppName: "Samatta Foundation", AppURL: "https://example.org", SupportEmail: "info@example.org"},
	}
}

func newTestController(st Store, p Payments, n Notifier, g Guard) *Controller {
	c := NewController(st, p, n, g, testConfig(), zap.NewNop())
	seq := 0
	c.newKey = func() string {
		seq++
		return "key-" + string(rune('0'+seq))
	}
	return c
}

func validContact() validation.ContactForm {
	return validation.ContactForm{Name: "Jo Doe", Email: "jo@x.com", Message: "Hello there, I have a question."}
}

func TestSubmitContact(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{accept: true}
	c := newTestController(st, nil, n, nil)

	out := c.SubmitContact(context.Background(), validContact(), Meta{ClientID: "cid"})

	require.True(t, out.Success)
	assert.Equal(t, "Message Sent!", out.Title)
	assert.Equal(t, http.StatusOK, out.HTTPStatus())
	assert.Equal(t, 1, st.calls)
	require.Len(t, st.contacts, 1)
	assert.Equal(t, "jo@x.com", st.contacts[0].Email)
	assert.Equal(t, models.SubmissionStatusNew, st.contacts[0].Status)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "cid", n.sent[0].ClientID)
	assert.Equal(t, []string{"jo@x.com"}, n.sent[0].Confirmation.To)
}

func TestSubmitContact_InvalidDoesNoIO(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{accept: true}
	c := newTestController(st, nil, n, nil)

	form := validContact()
	form.Message = "Hi"
	out := c.SubmitContact(context.Background(), form, Meta{})

	assert.False(t, out.Success)
	assert.Equal(t, apperror.KindValidation, out.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, out.HTTPStatus())
	assert.Contains(t, out.Violations, "message")
	assert.Zero(t, st.calls)
	assert.Empty(t, n.sent)
}

func TestSubmitContact_NotificationDropDoesNotFail(t *testing.T) {
	st := &fakeStore{}
	c := newTestController(st, nil, &fakeNotifier{accept: false}, nil)

	out := c.SubmitContact(context.Background(), validContact(), Meta{})
	assert.True(t, out.Success)
}

func TestSubmitContact_DeliveryFailureIsIsolated(t *testing.T) {
	d := notify.NewDispatcher(notify.Options{
		Mailer:     failingMailer{},
		AdminEmail: "admin@example.org",
		Workers:    1,
	}, zap.NewNop())
	c := newTestController(&fakeStore{}, nil, d, nil)

	out := c.SubmitContact(context.Background(), validContact(), Meta{})
	require.NoError(t, d.Close(context.Background()))

	assert.True(t, out.Success)
	assert.Positive(t, d.Stats().Failed)
}

type failingMailer struct{}

func (failingMailer) SendEmail(context.Context, []string, string, string) error {
	return errors.New("smtp down")
}

func TestSubmitContact_RetriesTransientWithSameKey(t *testing.T) {
	transient := apperror.New(apperror.KindTransient, "connection reset")
	st := &fakeStore{errs: []error{transient, transient}}
	c := newTestController(st, nil, &fakeNotifier{accept: true}, nil)

	out := c.SubmitContact(context.Background(), validContact(), Meta{})

	assert.True(t, out.Success)
	assert.Equal(t, 3, st.calls)
	assert.Equal(t, []string{"key-1", "key-1", "key-1"}, st.keys)
}

func TestSubmitContact_ExhaustedRetries(t *testing.T) {
	transient := apperror.New(apperror.KindTransient, "connection reset")
	st := &fakeStore{errs: []error{transient, transient, transient}}
	n := &fakeNotifier{accept: true}
	c := newTestController(st, nil, n, nil)

	out := c.SubmitContact(context.Background(), validContact(), Meta{})

	assert.False(t, out.Success)
	assert.Equal(t, "Failed to send message. Please try again.", out.Description)
	assert.Equal(t, http.StatusBadGateway, out.HTTPStatus())
	assert.Equal(t, 3, st.calls)
	assert.Empty(t, n.sent)
	assert.NotEmpty(t, out.Detail)
}

func TestSubmitContact_DetailHiddenInProduction(t *testing.T) {
	st := &fakeStore{errs: []error{apperror.New(apperror.KindReference, "fk")}}
	c := newTestController(st, nil, &fakeNotifier{}, nil)
	c.cfg.Production = true

	out := c.SubmitContact(context.Background(), validContact(), Meta{})

	assert.False(t, out.Success)
	assert.Equal(t, 1, st.calls)
	assert.Empty(t, out.Detail)
}

func TestSubscribe_Duplicate(t *testing.T) {
	conflict := &apperror.Error{Kind: apperror.KindConflict, Code: apperror.CodeUniqueViolation, Message: store.MsgAlreadySubscribed}
	st := &fakeStore{errs: []error{conflict}}
	n := &fakeNotifier{accept: true}
	c := newTestController(st, nil, n, nil)

	out := c.Subscribe(context.Background(), validation.NewsletterForm{Email: "jo@x.com"}, Meta{})

	assert.False(t, out.Success)
	assert.Equal(t, 1, st.calls)
	assert.Equal(t, "Subscription Error", out.Title)
	assert.Equal(t, "This email is already subscribed to our newsletter.", out.Description)
	assert.Equal(t, http.StatusConflict, out.HTTPStatus())
	assert.Empty(t, n.sent)
}

func TestUnsubscribe(t *testing.T) {
	t.Run("active subscriber", func(t *testing.T) {
		st := &fakeStore{}
		c := newTestController(st, nil, nil, nil)

		out := c.Unsubscribe(context.Background(), " Jo@X.com ")
		assert.True(t, out.Success)
		assert.Equal(t, []string{"jo@x.com"}, st.deactivated)
	})

	t.Run("unknown address", func(t *testing.T) {
		st := &fakeStore{errs: []error{apperror.New(apperror.KindNotFound, "no rows")}}
		c := newTestController(st, nil, nil, nil)

		out := c.Unsubscribe(context.Background(), "nobody@x.com")
		assert.True(t, out.Success)
		assert.Equal(t, 1, st.calls)
	})

	t.Run("invalid address", func(t *testing.T) {
		st := &fakeStore{}
		c := newTestController(st, nil, nil, nil)

		out := c.Unsubscribe(context.Background(), "not-an-email")
		assert.Equal(t, apperror.KindValidation, out.Kind)
		assert.Zero(t, st.calls)
	})
}

func validDonation() validation.DonationForm {
	return validation.DonationForm{
		DonorEmail:  "jo@x.com",
		Amount:      "50000",
		Currency:    "TZS",
		IsAnonymous: true,
	}
}

func TestDonate(t *testing.T) {
	st := &fakeStore{}
	p := &fakePayments{resp: &services.PaymentResponse{TransactionID: "tx-1", PaymentURL: "https://pay.example/tx-1"}}
	n := &fakeNotifier{accept: true}
	c := newTestController(st, p, n, nil)

	out := c.Donate(context.Background(), validDonation(), Meta{})

	require.True(t, out.Success)
	assert.Equal(t, "https://pay.example/tx-1", out.RedirectURL)
	require.Len(t, st.donations, 1)
	assert.Equal(t, models.PaymentStatusPending, st.donations[0].PaymentStatus)
	assert.Nil(t, st.donations[0].DonorName)
	assert.Equal(t, "don-1", p.seen.ID)
	assert.Equal(t, 1, p.sessions)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "donate", n.sent[0].Event.Name)
}

func TestDonate_NamedDonorRequiresName(t *testing.T) {
	st := &fakeStore{}
	p := &fakePayments{}
	c := newTestController(st, p, nil, nil)

	form := validDonation()
	form.IsAnonymous = false
	out := c.Donate(context.Background(), form, Meta{})

	assert.Equal(t, apperror.KindValidation, out.Kind)
	assert.Contains(t, out.Violations, "donor_name")
	assert.Zero(t, st.calls)
	assert.Zero(t, p.calls)
}

func TestDonate_ConfigurationError(t *testing.T) {
	st := &fakeStore{}
	p := &fakePayments{err: apperror.Configuration("missing CLICKPESA_API_KEY")}
	n := &fakeNotifier{accept: true}
	c := newTestController(st, p, n, nil)

	out := c.Donate(context.Background(), validDonation(), Meta{})

	assert.False(t, out.Success)
	assert.Equal(t, http.StatusServiceUnavailable, out.HTTPStatus())
	assert.Equal(t, msgPaymentsDisabled, out.Description)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, n.sent)
}

func TestDonate_NoGateway(t *testing.T) {
	st := &fakeStore{}
	c := NewController(st, nil, nil, nil, testConfig(), nil)

	out := c.Donate(context.Background(), validDonation(), Meta{})

	assert.Equal(t, apperror.KindConfiguration, out.Kind)
	assert.Zero(t, st.calls)
}

func TestDonate_RateLimitedGatewayRetried(t *testing.T) {
	st := &fakeStore{}
	p := &fakePayments{err: apperror.New(apperror.KindRateLimit, "slow down")}
	c := newTestController(st, p, nil, nil)

	out := c.Donate(context.Background(), validDonation(), Meta{})

	assert.Equal(t, 3, p.calls)
	assert.Equal(t, http.StatusTooManyRequests, out.HTTPStatus())
	assert.Equal(t, msgBusy, out.Description)
}

func TestGuard(t *testing.T) {
	t.Run("second submit of the same key", func(t *testing.T) {
		st := &fakeStore{}
		g := &fakeGuard{claimed: map[string]bool{}}
		c := newTestController(st, nil, &fakeNotifier{accept: true}, g)
		meta := Meta{IdempotencyKey: "3f2b"}

		first := c.SubmitContact(context.Background(), validContact(), meta)
		second := c.SubmitContact(context.Background(), validContact(), meta)

		assert.True(t, first.Success)
		assert.False(t, second.Success)
		assert.True(t, second.Duplicate)
		assert.Equal(t, http.StatusConflict, second.HTTPStatus())
		assert.Equal(t, "Error", second.Title)
		assert.Equal(t, 1, st.calls)
		assert.Equal(t, []string{"3f2b"}, st.keys)
	})

	t.Run("claim held by an unfinished submission", func(t *testing.T) {
		st := &fakeStore{}
		g := &fakeGuard{claimed: map[string]bool{"submit:contact:3f2b": true}}
		c := newTestController(st, nil, &fakeNotifier{accept: true}, g)

		out := c.SubmitContact(context.Background(), validContact(), Meta{IdempotencyKey: "3f2b"})
		assert.False(t, out.Success)
		assert.NotEqual(t, contactCopy.successTitle, out.Title)
		assert.Equal(t, http.StatusConflict, out.HTTPStatus())
		assert.Zero(t, st.calls)
	})

	t.Run("released after failure", func(t *testing.T) {
		st := &fakeStore{errs: []error{apperror.New(apperror.KindBadRequest, "bad")}}
		g := &fakeGuard{claimed: map[string]bool{}}
		c := newTestController(st, nil, &fakeNotifier{accept: true}, g)
		meta := Meta{IdempotencyKey: "3f2b"}

		first := c.SubmitContact(context.Background(), validContact(), meta)
		second := c.SubmitContact(context.Background(), validContact(), meta)

		assert.False(t, first.Success)
		assert.True(t, second.Success)
		assert.False(t, second.Duplicate)
		assert.Equal(t, []string{"submit:contact:3f2b"}, g.released)
	})

	t.Run("donation in flight is not reported as initiated", func(t *testing.T) {
		st := &fakeStore{}
		p := &fakePayments{resp: &services.PaymentResponse{TransactionID: "tx-1", PaymentURL: "https://pay.example/tx-1"}}
		g := &fakeGuard{claimed: map[string]bool{"submit:donation:9c1d": true}}
		c := newTestController(st, p, &fakeNotifier{accept: true}, g)

		out := c.Donate(context.Background(), validDonation(), Meta{IdempotencyKey: "9c1d"})
		assert.False(t, out.Success)
		assert.True(t, out.Duplicate)
		assert.NotEqual(t, donationCopy.successTitle, out.Title)
		assert.Equal(t, http.StatusConflict, out.HTTPStatus())
		assert.Empty(t, out.RedirectURL)
		assert.Zero(t, st.calls)
		assert.Zero(t, p.calls)
	})

	t.Run("unavailable guard does not block", func(t *testing.T) {
		st := &fakeStore{}
		g := &fakeGuard{err: errors.New("redis down")}
		c := newTestController(st, nil, nil, g)

		out := c.SubmitContact(context.Background(), validContact(), Meta{IdempotencyKey: "k"})
		assert.True(t, out.Success)
		assert.Equal(t, 1, st.calls)
	})
}

func TestValidated(t *testing.T) {
	rec, v := validated[*models.ContactSubmission](validContact())
	require.Nil(t, v)
	require.NotNil(t, rec)

	bad := validContact()
	bad.Email = "not-an-email"
	rec, v = validated[*models.ContactSubmission](bad)
	assert.Nil(t, rec)
	assert.Contains(t, v, "email")

	donation, v := validated[*models.Donation](validContact())
	assert.Nil(t, donation)
	assert.Contains(t, v["form"], "contact")
}
