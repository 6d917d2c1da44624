package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/internal/services"
	"foundation_site/internal/store"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeTaskStore struct {
	mu      sync.Mutex
	due     []models.ScheduledTask
	updates []map[string]interface{}
	history []models.ScheduledTaskHistory
	created []*models.ScheduledTask
}

func (s *fakeTaskStore) DueTasks(_ context.Context, _ time.Time) ([]models.ScheduledTask, error) {
	return s.due, nil
}

func (s *fakeTaskStore) UpdateTask(_ context.Context, _ *models.ScheduledTask, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, updates)
	return nil
}

func (s *fakeTaskStore) RecordHistory(_ context.Context, h *models.ScheduledTaskHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *h)
	return nil
}

func (s *fakeTaskStore) Create(_ context.Context, task *models.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, task)
	return nil
}

func newTestRunner(st *fakeTaskStore, r *Registry) *Runner {
	runner := NewRunner(st, r, zap.NewNop())
	runner.now = func() time.Time { return fixedNow }
	return runner
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	DefineTasks(r, Deps{})

	assert.Equal(t, []string{"admin_digest", "log_info", "reconcile_donations"}, r.Names())
	_, ok := r.Get("log_info")
	assert.True(t, ok)
	_, ok = r.Get("send_notification")
	assert.False(t, ok)
}

func TestBuildScheduledTask(t *testing.T) {
	rule := "FREQ=HOURLY"
	task, err := BuildScheduledTask("reconcile_donations", ReconcileArgs{Limit: 10}, fixedNow, &rule, models.ScheduledTaskTypeRecurring, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, task.MaxAttempt)
	assert.Equal(t, models.ScheduledTaskStatusActive, task.Status)
	assert.Equal(t, float64(10), task.Arguments["limit"])
}

func TestRunnerOneTimeSuccess(t *testing.T) {
	st := &fakeTaskStore{due: []models.ScheduledTask{{
		ID: 1, TaskName: "log_info", TaskType: models.ScheduledTaskTypeOneTime, MaxAttempt: 3,
		Arguments: map[string]interface{}{"message": "hello"},
	}}}
	r := NewRegistry()
	r.Define(NewLogInfoTask(zap.NewNop()))

	ran, err := newTestRunner(st, r).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	require.Len(t, st.history, 1)
	assert.Equal(t, "success", st.history[0].Status)
	assert.Equal(t, 1, st.history[0].AttemptNumber)
	assert.Equal(t, "hello", st.history[0].Result["message"])

	require.Len(t, st.updates, 1)
	assert.Equal(t, models.ScheduledTaskStatusDone, st.updates[0]["status"])
}

func TestRunnerRetriesUpToMaxAttempt(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.Register("flaky", func(context.Context, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		return nil, errors.New("boom")
	})
	st := &fakeTaskStore{}

	newTestRunner(st, r).Execute(context.Background(), models.ScheduledTask{ID: 2, TaskName: "flaky", MaxAttempt: 3})

	assert.Equal(t, 3, calls)
	require.Len(t, st.history, 3)
	for i, h := range st.history {
		assert.Equal(t, i+1, h.AttemptNumber)
		assert.Equal(t, "failure", h.Status)
		assert.Equal(t, "boom", h.Result["error"])
	}
	require.Len(t, st.updates, 1)
	assert.Equal(t, models.ScheduledTaskStatusFailure, st.updates[0]["status"])
}

func TestRunnerSucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.Register("flaky", func(context.Context, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		if calls == 1 {
			panic("first run")
		}
		return map[string]interface{}{"ok": true}, nil
	})
	st := &fakeTaskStore{}

	newTestRunner(st, r).Execute(context.Background(), models.ScheduledTask{ID: 3, TaskName: "flaky", MaxAttempt: 3})

	assert.Equal(t, 2, calls)
	require.Len(t, st.history, 2)
	assert.Contains(t, st.history[0].Result["error"], "panic: first run")
	assert.Equal(t, "success", st.history[1].Status)
	assert.Equal(t, models.ScheduledTaskStatusDone, st.updates[0]["status"])
}

func TestRunnerRecurringReschedules(t *testing.T) {
	rule := "FREQ=HOURLY"
	task := models.ScheduledTask{
		ID: 4, TaskName: "log_info", TaskType: models.ScheduledTaskTypeRecurring,
		RecurringInterval: &rule, Due: fixedNow.Add(-3 * time.Hour), MaxAttempt: 1,
	}
	r := NewRegistry()
	r.Define(NewLogInfoTask(nil))
	st := &fakeTaskStore{}

	newTestRunner(st, r).Execute(context.Background(), task)

	require.Len(t, st.updates, 1)
	assert.Equal(t, models.ScheduledTaskStatusActive, st.updates[0]["status"])
	assert.Equal(t, fixedNow.Add(time.Hour), st.updates[0]["due"])
}

func TestRunnerRecurringFailureMovesToNextOccurrence(t *testing.T) {
	rule := "FREQ=MINUTELY;INTERVAL=15"
	task := models.ScheduledTask{
		ID: 7, TaskName: "reconcile_donations", TaskType: models.ScheduledTaskTypeRecurring,
		RecurringInterval: &rule, Due: fixedNow.Add(-time.Minute), MaxAttempt: 3,
	}
	r := NewRegistry()
	r.Register("reconcile_donations", func(context.Context, models.ScheduledTask) (map[string]interface{}, error) {
		return nil, errors.New("gateway unreachable")
	})
	st := &fakeTaskStore{}

	newTestRunner(st, r).Execute(context.Background(), task)

	require.Len(t, st.history, 3)
	for _, h := range st.history {
		assert.Equal(t, "failure", h.Status)
	}
	require.Len(t, st.updates, 1)
	assert.Equal(t, models.ScheduledTaskStatusActive, st.updates[0]["status"])
	due, ok := st.updates[0]["due"].(time.Time)
	require.True(t, ok)
	assert.True(t, due.After(fixedNow))
}

func TestRunnerRecurringExhaustedRuleIsDone(t *testing.T) {
	rule := "FREQ=DAILY;COUNT=1"
	task := models.ScheduledTask{
		ID: 5, TaskName: "log_info", TaskType: models.ScheduledTaskTypeRecurring,
		RecurringInterval: &rule, Due: fixedNow.Add(-48 * time.Hour), MaxAttempt: 1,
	}
	r := NewRegistry()
	r.Define(NewLogInfoTask(nil))
	st := &fakeTaskStore{}

	newTestRunner(st, r).Execute(context.Background(), task)

	assert.Equal(t, models.ScheduledTaskStatusDone, st.updates[0]["status"])
	assert.NotContains(t, st.updates[0], "due")
}

func TestRunnerUnknownHandler(t *testing.T) {
	st := &fakeTaskStore{}
	newTestRunner(st, NewRegistry()).Execute(context.Background(), models.ScheduledTask{ID: 6, TaskName: "send_notification"})

	require.Len(t, st.history, 1)
	assert.Equal(t, "handler_not_found", st.history[0].Status)
	assert.Equal(t, models.ScheduledTaskStatusFailure, st.updates[0]["status"])
}

type fakeDonations struct {
	pending     []models.Donation
	sessions    map[string]*models.PaymentSession
	transitions map[string]models.PaymentStatus
}

func (f *fakeDonations) PendingDonations(_ context.Context, _ time.Time, _ int) ([]models.Donation, error) {
	return f.pending, nil
}

func (f *fakeDonations) LatestPaymentSession(_ context.Context, id string) (*models.PaymentSession, error) {
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, apperror.New(apperror.KindNotFound, "no payment session")
}

func (f *fakeDonations) TransitionDonation(_ context.Context, id string, u store.PaymentUpdate) (bool, error) {
	if f.transitions == nil {
		f.transitions = map[string]models.PaymentStatus{}
	}
	f.transitions[id] = u.Status
	return true, nil
}

type fakeVerifier struct {
	results map[string]*services.PaymentVerification
	errs    map[string]error
	calls   []string
}

func (f *fakeVerifier) Verify(_ context.Context, txID string) (*services.PaymentVerification, error) {
	f.calls = append(f.calls, txID)
	if err := f.errs[txID]; err != nil {
		return nil, err
	}
	return f.results[txID], nil
}

func donation(id string, age time.Duration) models.Donation {
	d := models.Donation{DonorEmail: id + "@x.com", Amount: 10000, Currency: "TZS"}
	d.ID = id
	d.CreatedAt = fixedNow.Add(-age)
	return d
}

func TestReconcileDonations(t *testing.T) {
	donations := &fakeDonations{
		pending: []models.Donation{
			donation("paid", time.Hour),
			donation("waiting", time.Hour),
			donation("stale", 30*time.Hour),
			donation("orphan", 30*time.Hour),
			donation("young-orphan", time.Hour),
			donation("unknown", 48*time.Hour),
			donation("down", time.Hour),
		},
		sessions: map[string]*models.PaymentSession{
			"paid":    {TransactionID: "tx-paid"},
			"waiting": {TransactionID: "tx-waiting"},
			"stale":   {TransactionID: "tx-stale"},
			"unknown": {TransactionID: "tx-unknown"},
			"down":    {Reference: "tx-down"},
		},
	}
	verifier := &fakeVerifier{
		results: map[string]*services.PaymentVerification{
			"tx-paid":    {Status: models.PaymentStatusCompleted},
			"tx-waiting": {Status: models.PaymentStatusPending},
			"tx-stale":   {Status: models.PaymentStatusPending},
		},
		errs: map[string]error{
			"tx-unknown": apperror.New(apperror.KindNotFound, "transaction not found"),
			"tx-down":    apperror.New(apperror.KindTransient, "gateway unavailable"),
		},
	}
	task := NewReconcileDonationsTask(donations, verifier, zap.NewNop())
	task.now = func() time.Time { return fixedNow }

	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{})
	require.NoError(t, err)

	assert.Equal(t, 7, result["checked"])
	assert.Equal(t, 1, result["completed"])
	assert.Equal(t, 3, result["failed"])
	assert.Equal(t, 2, result["pending"])
	assert.Equal(t, 1, result["errors"])

	assert.Equal(t, map[string]models.PaymentStatus{
		"stale":   models.PaymentStatusFailed,
		"orphan":  models.PaymentStatusFailed,
		"unknown": models.PaymentStatusFailed,
	}, donations.transitions)
	assert.NotContains(t, verifier.calls, "")
}

func TestReconcileWithoutGateway(t *testing.T) {
	task := NewReconcileDonationsTask(&fakeDonations{}, nil, nil)
	_, err := task.HandleExecution(context.Background(), models.ScheduledTask{})
	assert.True(t, apperror.Is(err, apperror.KindConfiguration))
}

type fakeDigestStore struct {
	contacts  []models.ContactSubmission
	donations []models.Donation
	err       error
}

func (f *fakeDigestStore) RecentContacts(context.Context, int) ([]models.ContactSubmission, error) {
	return f.contacts, f.err
}

func (f *fakeDigestStore) RecentSubscriptions(context.Context, int) ([]models.NewsletterSubscription, error) {
	return nil, nil
}

func (f *fakeDigestStore) RecentVolunteers(context.Context, int) ([]models.VolunteerRegistration, error) {
	return nil, nil
}

func (f *fakeDigestStore) RecentApplications(context.Context, int) ([]models.ProgramApplication, error) {
	return nil, nil
}

func (f *fakeDigestStore) RecentAllDonations(context.Context, int) ([]models.Donation, error) {
	return f.donations, nil
}

type recordingMailer struct {
	err  error
	sent []string
}

func (m *recordingMailer) SendEmail(_ context.Context, to []string, subject, body string) error {
	m.sent = append(m.sent, strings.Join(to, ",")+"|"+subject+"|"+body)
	return m.err
}

type recordingAlerter struct {
	err  error
	sent []string
}

func (a *recordingAlerter) SendMessage(_ context.Context, chatID, text string) error {
	a.sent = append(a.sent, chatID+"|"+text)
	return a.err
}

func newDigestFixture() *fakeDigestStore {
	contact := models.ContactSubmission{Name: "Jo"}
	contact.CreatedAt = fixedNow.Add(-time.Hour)
	old := models.ContactSubmission{Name: "Old"}
	old.CreatedAt = fixedNow.Add(-72 * time.Hour)

	completed := donation("d1", 2*time.Hour)
	completed.PaymentStatus = models.PaymentStatusCompleted
	pending := donation("d2", 3*time.Hour)
	pending.PaymentStatus = models.PaymentStatusPending

	return &fakeDigestStore{
		contacts:  []models.ContactSubmission{contact, old},
		donations: []models.Donation{completed, pending},
	}
}

var digestCfg = DigestConfig{
	AppName: "Samatta Foundation", AppURL: "https://example.org",
	AdminEmail: "admin@example.org", AdminChatID: "255700000000@c.us",
}

func TestAdminDigestSendsSummary(t *testing.T) {
	mailer := &recordingMailer{}
	alerter := &recordingAlerter{}
	task := NewAdminDigestTask(newDigestFixture(), &fakeTaskStore{}, mailer, alerter, digestCfg, zap.NewNop())
	task.now = func() time.Time { return fixedNow }

	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{MaxAttempt: 3})
	require.NoError(t, err)

	assert.Equal(t, 1, result["contacts"])
	assert.Equal(t, 2, result["donations"])
	assert.Equal(t, 2, result["sent"])

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0], "admin@example.org|Samatta Foundation digest: last 24 hours")
	assert.Contains(t, mailer.sent[0], "Donations: 2 (1 completed)")
	assert.Contains(t, mailer.sent[0], "TZS 10000.00 raised")
	require.Len(t, alerter.sent, 1)
	assert.True(t, strings.HasPrefix(alerter.sent[0], "255700000000@c.us|"))
}

func TestAdminDigestSkipsWhenQuiet(t *testing.T) {
	mailer := &recordingMailer{}
	task := NewAdminDigestTask(&fakeDigestStore{}, nil, mailer, nil, digestCfg, nil)
	task.now = func() time.Time { return fixedNow }

	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{})
	require.NoError(t, err)
	assert.Equal(t, "nothing new", result["skipped"])
	assert.Empty(t, mailer.sent)
}

func TestAdminDigestReschedulesFailedChannels(t *testing.T) {
	scheduler := &fakeTaskStore{}
	task := NewAdminDigestTask(newDigestFixture(), scheduler, &recordingMailer{}, &recordingAlerter{err: errors.New("waha down")}, digestCfg, nil)
	task.now = func() time.Time { return fixedNow }

	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{MaxAttempt: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{ChannelWhatsapp}, result["rescheduled"])

	require.Len(t, scheduler.created, 1)
	retry := scheduler.created[0]
	assert.Equal(t, "admin_digest", retry.TaskName)
	assert.Equal(t, models.ScheduledTaskTypeOneTime, retry.TaskType)
	assert.Equal(t, fixedNow.Add(5*time.Minute), retry.Due)
	assert.Equal(t, float64(1), retry.Arguments["attempt_count"])
	assert.Equal(t, []interface{}{ChannelWhatsapp}, retry.Arguments["channels"])
}

func TestAdminDigestGivesUpAfterMaxAttempt(t *testing.T) {
	scheduler := &fakeTaskStore{}
	task := NewAdminDigestTask(newDigestFixture(), scheduler, &recordingMailer{err: errors.New("smtp down")}, nil, digestCfg, nil)
	task.now = func() time.Time { return fixedNow }

	_, err := task.HandleExecution(context.Background(), models.ScheduledTask{
		MaxAttempt: 3,
		Arguments:  map[string]interface{}{"channels": []interface{}{"email"}, "attempt_count": 3},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max attempts reached")
	assert.Empty(t, scheduler.created)
}

func TestAdminDigestStoreError(t *testing.T) {
	task := NewAdminDigestTask(&fakeDigestStore{err: errors.New("db down")}, nil, &recordingMailer{}, nil, digestCfg, nil)
	_, err := task.HandleExecution(context.Background(), models.ScheduledTask{})
	assert.ErrorContains(t, err, "collect digest")
}

func newMockTaskStore(t *testing.T) (*GormTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormTaskStore(db), mock
}

func TestGormTaskStoreDueTasks(t *testing.T) {
	st, mock := newMockTaskStore(t)

	mock.ExpectQuery(`SELECT \* FROM "scheduled_tasks" WHERE \(status = \$1 AND due <= \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_name", "arguments", "status", "max_attempt"}).
			AddRow(9, "log_info", `{"message":"hi"}`, "active", 3))

	due, err := st.DueTasks(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, uint(9), due[0].ID)
	assert.Equal(t, "hi", due[0].Arguments["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTaskStoreEnsureRecurring(t *testing.T) {
	t.Run("creates when missing", func(t *testing.T) {
		st, mock := newMockTaskStore(t)
		mock.ExpectQuery(`SELECT \* FROM "scheduled_tasks" WHERE \(task_name = \$1 AND status = \$2\)`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`INSERT INTO "scheduled_tasks"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

		task, err := NewReconcileDonationsTask(nil, nil, nil).CreateTask(ReconcileArgs{}, "FREQ=MINUTELY;INTERVAL=15")
		require.NoError(t, err)

		created, err := st.EnsureRecurring(context.Background(), task)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, uint(11), task.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keeps existing", func(t *testing.T) {
		st, mock := newMockTaskStore(t)
		mock.ExpectQuery(`SELECT \* FROM "scheduled_tasks" WHERE \(task_name = \$1 AND status = \$2\)`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "task_name"}).AddRow(3, "reconcile_donations"))

		created, err := st.EnsureRecurring(context.Background(), &models.ScheduledTask{TaskName: "reconcile_donations"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
