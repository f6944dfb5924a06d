package api

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestScheduler(s *testServer, now time.Time) *NotificationScheduler {
	sched := NewNotificationScheduler(s.handler.Store, s.handler.Notifier, zap.NewNop())
	sched.now = func() time.Time { return now }
	return sched
}

func TestScheduler_RunNow_Midweek(t *testing.T) {
	// GIVEN: The small team on a Wednesday
	// WHEN: A sweep runs
	// THEN: Only brown's positive balance is reported, and nobody gets a reminder

	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	summary := newTestScheduler(s, fixedNow).RunNow(context.Background())

	if summary.Checked != 7 {
		t.Errorf("Expected 7 users checked, got %d", summary.Checked)
	}
	if summary.OvertimeSent != 1 || summary.RemindersSent != 0 || summary.Failed != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	sent := s.sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 mail, got %d", len(sent))
	}
	if sent[0].Subject != "Pending overtime: Ann Brown" || sent[0].To[0] != "admin@example.com" {
		t.Errorf("Unexpected mail %+v", sent[0])
	}
}

func TestScheduler_RunNow_ReminderDay(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	monday := time.Date(2024, time.March, 18, 9, 0, 0, 0, time.UTC)
	summary := newTestScheduler(s, monday).RunNow(context.Background())

	if summary.RemindersSent != 7 || summary.OvertimeSent != 1 {
		t.Errorf("Unexpected summary %+v", summary)
	}
	if got := len(s.sender.Sent()); got != 8 {
		t.Errorf("Expected 8 mails, got %d", got)
	}
}

func TestScheduler_SkipsDisabledUsers(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario(t, "small-team")

	ctx := context.Background()
	brown, err := s.handler.Store.GetUser(ctx, "brown")
	if err != nil {
		t.Fatalf("Failed to load brown: %v", err)
	}
	brown.Disabled = true
	if err := s.handler.Store.SaveUser(ctx, *brown); err != nil {
		t.Fatalf("Failed to save brown: %v", err)
	}

	summary := newTestScheduler(s, fixedNow).RunNow(ctx)
	if summary.Checked != 6 || summary.OvertimeSent != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestServer(t)

	sched := newTestScheduler(s, fixedNow)
	sched.CheckInterval = time.Hour
	sched.Start()
	sched.Start()
	sched.Stop()
	sched.Stop()

	if next := sched.NextRunTime(); !next.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("Expected next run at %v, got %v", fixedNow.Add(time.Hour), next)
	}
}
