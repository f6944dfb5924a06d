/*
scheduler.go - Periodic notification scheduler

PURPOSE:
  Periodically walks every enabled user and sends the notifications that
  are not triggered by an entry write: pending overtime to managers, and
  the weekly balance reminder to the user on the reminder weekday.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - A failure for one user is logged and does not stop the sweep
  - The reminder weekday is compared against the scheduler's clock, so an
    interval of 24h sends one reminder per week

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 24 hours)
  - Enabled: Whether the scheduler is active
  - ReminderDay: Weekday for weekly reminders (default: Monday)

USAGE:
  scheduler := NewNotificationScheduler(store, notifier, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - tracker/notifier.go: PendingOvertime and WeeklyReminder
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/timetracker/tracker"
	"go.uber.org/zap"
)

// SweepSummary counts what one sweep did.
type SweepSummary struct {
	Checked       int
	OvertimeSent  int
	RemindersSent int
	Failed        int
}

// NotificationScheduler sends periodic notifications.
type NotificationScheduler struct {
	Users         tracker.UserStore
	Notifier      *tracker.Notifier
	CheckInterval time.Duration
	Enabled       bool
	ReminderDay   time.Weekday

	log    *zap.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewNotificationScheduler creates a new scheduler.
func NewNotificationScheduler(users tracker.UserStore, notifier *tracker.Notifier, log *zap.Logger) *NotificationScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationScheduler{
		Users:         users,
		Notifier:      notifier,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		ReminderDay:   time.Monday,
		log:           log.Named("scheduler"),
		now:           time.Now,
	}
}

// Start begins the scheduler.
func (s *NotificationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.log.Info("started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *NotificationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.log.Info("stopped")
	}
}

func (s *NotificationScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one sweep (for testing/admin).
func (s *NotificationScheduler) RunNow(ctx context.Context) SweepSummary {
	var summary SweepSummary

	users, err := s.Users.ListUsers(ctx)
	if err != nil {
		s.log.Error("listing users failed", zap.Error(err))
		return summary
	}

	remind := s.now().Weekday() == s.ReminderDay
	for _, u := range users {
		if u.Disabled {
			continue
		}
		summary.Checked++

		sent, err := s.Notifier.PendingOvertime(ctx, u)
		if err != nil {
			summary.Failed++
			s.log.Warn("pending overtime check failed", zap.String("user", string(u.ID)), zap.Error(err))
		} else if sent {
			summary.OvertimeSent++
		}

		if !remind {
			continue
		}
		if err := s.Notifier.WeeklyReminder(ctx, u); err != nil {
			summary.Failed++
			s.log.Warn("weekly reminder failed", zap.String("user", string(u.ID)), zap.Error(err))
		} else {
			summary.RemindersSent++
		}
	}

	s.log.Info("sweep completed",
		zap.Int("checked", summary.Checked),
		zap.Int("overtime_sent", summary.OvertimeSent),
		zap.Int("reminders_sent", summary.RemindersSent),
		zap.Int("failed", summary.Failed),
	)
	return summary
}

// NextRunTime returns when the next scheduled sweep will occur.
func (s *NotificationScheduler) NextRunTime() time.Time {
	return s.now().Add(s.CheckInterval)
}
