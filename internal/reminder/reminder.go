// Package reminder announces doses as they come due. Checks run on a cron
// schedule; each check covers the time since the previous one.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"medrx/internal/rx"
)

// DefaultSchedule runs a check at the start of every minute.
const DefaultSchedule = "* * * * *"

// CheckTimeout bounds a single scheduled check.
const CheckTimeout = time.Minute

// DoseSource lists scheduled doses. rx.Service satisfies it.
type DoseSource interface {
	UpcomingDoses(ctx context.Context, from, to time.Time) ([]rx.Dose, error)
}

// Notifier delivers one reminder.
type Notifier interface {
	Remind(ctx context.Context, dose rx.Dose) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, dose rx.Dose) error

func (f NotifierFunc) Remind(ctx context.Context, dose rx.Dose) error {
	return f(ctx, dose)
}

// Reminder runs dose checks on a cron schedule.
type Reminder struct {
	source   DoseSource
	notifier Notifier
	clock    rx.Clock
	logger   rx.Logger
	cron     *cron.Cron

	mu    sync.Mutex
	since time.Time
}

// New creates a Reminder whose first check covers doses after the current
// time. Cron specs are interpreted in loc.
func New(source DoseSource, notifier Notifier, clock rx.Clock, logger rx.Logger, loc *time.Location) *Reminder {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{l: logger}
	return &Reminder{
		source:   source,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		since:    clock.Now(),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start schedules checks with a standard five-field cron spec and starts the
// scheduler. An empty spec selects DefaultSchedule.
func (r *Reminder) Start(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	r.cron.Start()
	r.logger.Info("reminders started", "schedule", spec)
	return nil
}

// Stop halts the scheduler and waits for a running check to finish.
func (r *Reminder) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("reminders stopped")
}

func (r *Reminder) run() {
	ctx, cancel := context.WithTimeout(context.Background(), CheckTimeout)
	defer cancel()

	if _, err := r.Check(ctx); err != nil {
		r.logger.Error("reminder check failed", "error", err)
	}
}

// Check sends a reminder for every untaken dose scheduled after the previous
// check and no later than now, and returns how many were delivered. When the
// dose list cannot be read the window stays open and the next check covers it.
func (r *Reminder) Check(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if !now.After(r.since) {
		return 0, nil
	}

	doses, err := r.source.UpcomingDoses(ctx, r.since, now)
	if err != nil {
		return 0, fmt.Errorf("listing doses: %w", err)
	}

	sent := 0
	for _, d := range doses {
		if d.Taken || !d.At.After(r.since) || d.At.After(now) {
			continue
		}
		if err := r.notifier.Remind(ctx, d); err != nil {
			r.logger.Warn("reminder not delivered", "medication", d.Medication.ID.String(), "at", d.At.Format(time.RFC3339), "error", err)
			continue
		}
		sent++
	}
	r.since = now
	r.logger.Debug("reminder check", "until", now.Format(time.RFC3339), "sent", sent)
	return sent, nil
}

// cronLogger forwards the scheduler's own logging. Its routine messages are
// demoted to debug.
type cronLogger struct {
	l rx.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
