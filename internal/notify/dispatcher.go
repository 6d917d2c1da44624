// Package notify delivers the confirmations, staff alerts and analytics
// events that follow a successful submission. Delivery happens on background
// workers; a failed or panicking delivery is logged and dropped.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Mailer sends plain-text email.
type Mailer interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// Tracker records an analytics event.
type Tracker interface {
	TrackEvent(ctx context.Context, clientID, name string, params map[string]any) error
}

// Alerter pushes a short message to a chat.
type Alerter interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Email is one message.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// Event is one analytics event.
type Event struct {
	Name   string
	Params map[string]any
}

// Notification groups what one submission triggers. Every part is optional
// and delivered independently.
type Notification struct {
	Source   string
	ClientID string

	Confirmation *Email
	AdminEmail   *Email
	AdminAlert   string
	Event        *Event
}

// Options configures a Dispatcher.
type Options struct {
	Mailer  Mailer
	Tracker Tracker
	Alerter Alerter

	// AdminEmail receives AdminEmail parts with no recipients.
	AdminEmail string
	// AdminChatID receives AdminAlert text; empty disables alerts.
	AdminChatID string

	Workers   int
	QueueSize int
	// Timeout bounds each part's delivery.
	Timeout time.Duration
}

// Stats counts delivered, failed and dropped parts.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

var ErrClosed = errors.New("notify: dispatcher closed")

type Dispatcher struct {
	opts Options
	log  *zap.Logger
	jobs chan Notification
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher starts opts.Workers workers. Call Close to stop them.
func NewDispatcher(opts Options, log *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		opts: opts,
		log:  log.Named("notify"),
		jobs: make(chan Notification, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch queues n and returns at once. It reports false when n was dropped
// because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		d.log.Warn("notification dropped: dispatcher closed", zap.String("source", n.Source))
		return false
	}
	select {
	case d.jobs <- n:
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn("notification dropped: queue full", zap.String("source", n.Source))
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify: drain interrupted: %w", ctx.Err())
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.jobs {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	if n.Confirmation != nil && d.opts.Mailer != nil {
		email := *n.Confirmation
		d.run(n.Source, "confirmation", func(ctx context.Context) error {
			return d.opts.Mailer.SendEmail(ctx, email.To, email.Subject, email.Body)
		})
	}

	if n.AdminEmail != nil && d.opts.Mailer != nil {
		email := *n.AdminEmail
		if len(email.To) == 0 && d.opts.AdminEmail != "" {
			email.To = []string{d.opts.AdminEmail}
		}
		if len(email.To) > 0 {
			d.run(n.Source, "admin_email", func(ctx context.Context) error {
				return d.opts.Mailer.SendEmail(ctx, email.To, email.Subject, email.Body)
			})
		}
	}

	if n.AdminAlert != "" && d.opts.Alerter != nil && d.opts.AdminChatID != "" {
		d.run(n.Source, "admin_alert", func(ctx context.Context) error {
			return d.opts.Alerter.SendMessage(ctx, d.opts.AdminChatID, n.AdminAlert)
		})
	}

	if n.Event != nil && d.opts.Tracker != nil {
		event := *n.Event
		d.run(n.Source, "analytics", func(ctx context.Context) error {
			return d.opts.Tracker.TrackEvent(ctx, n.ClientID, event.Name, event.Params)
		})
	}
}

// run delivers one part inside its own error boundary.
func (d *Dispatcher) run(source, part string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	}()

	if err != nil {
		d.failed.Add(1)
		d.log.Warn("notification failed",
			zap.String("source", source),
			zap.String("part", part),
			zap.Error(err),
		)
		return
	}
	d.delivered.Add(1)
	d.log.Debug("notification delivered", zap.String("source", source), zap.String("part", part))
}
