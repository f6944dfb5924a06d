/*
notifier.go - Notification delivery

PURPOSE:
  Builds and sends the messages whose triggers live in notify.go and
  engine.go. Recipients come from the resolver unless the user's market
  overrides them in configuration.

MESSAGES:
  SickLeave:       managers, when sick entries reach the threshold
  PendingOvertime: managers and team leads, when the balance is positive
  WeeklyReminder:  the user, previous week against the expected week

FAILURE POLICY:
  Errors from the mail sender are returned to the caller, which logs them.
  Whether the sender reports errors at all is the sender's configuration
  (see mail.AsyncSender). Nothing here feeds back into a balance.
*/
package tracker

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/mail"
	"go.uber.org/zap"
)

// NotifyConfig carries the per-market recipient overrides.
type NotifyConfig struct {
	From string

	// ManagerEmailsOverride replaces the administrator's address by market.
	ManagerEmailsOverride map[string][]string
	// ManagerNamesOverride replaces the administrator's name by market.
	ManagerNamesOverride map[string][]string
	// TLApprovalChains maps market then process to team lead addresses.
	TLApprovalChains map[string]map[string][]string
}

// OvertimeMessage builds a market-specific pending overtime message. The
// returned recipients are used as-is.
type OvertimeMessage func(user User, balance generic.Amount) mail.Message

type Notifier struct {
	engine   *Engine
	resolver *Resolver
	sender   mail.Sender
	cfg      NotifyConfig
	overtime map[string]OvertimeMessage
	log      *zap.Logger
}

func NewNotifier(engine *Engine, resolver *Resolver, sender mail.Sender, cfg NotifyConfig, log *zap.Logger) *Notifier {
	if cfg.From == "" {
		cfg.From = mail.DefaultFrom
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		engine:   engine,
		resolver: resolver,
		sender:   sender,
		cfg:      cfg,
		overtime: make(map[string]OvertimeMessage),
		log:      log,
	}
}

// OverrideOvertime installs a pending overtime message builder for a market.
func (n *Notifier) OverrideOvertime(market string, build OvertimeMessage) {
	n.overtime[market] = build
}

// =============================================================================
// RECIPIENTS
// =============================================================================

func (n *Notifier) ManagerEmails(ctx context.Context, user User) ([]string, error) {
	if override := n.cfg.ManagerEmailsOverride[user.Market]; len(override) > 0 {
		return override, nil
	}
	admin, err := n.resolver.Administrator(ctx, user)
	if err != nil {
		return nil, err
	}
	return []string{admin.Email}, nil
}

// TeamLeadEmails returns the approval chain for the user's market and
// process, or nil when none is configured.
func (n *Notifier) TeamLeadEmails(user User) []string {
	return n.cfg.TLApprovalChains[user.Market][user.Process]
}

func (n *Notifier) ManagerName(ctx context.Context, user User) (string, error) {
	if override := n.cfg.ManagerNamesOverride[user.Market]; len(override) > 0 {
		return strings.Join(override, ",\n"), nil
	}
	admin, err := n.resolver.Administrator(ctx, user)
	if err != nil {
		return "", err
	}
	return admin.Name(), nil
}

// =============================================================================
// MESSAGES
// =============================================================================

var (
	sickTemplate = template.Must(template.New("sick").Parse(
		`Hello,

{{.Employee}} has recorded {{.Threshold}} or more days of sickness absence within the last {{.Window}} days.
Please review whether they should be taken off the action reports.
`))

	overtimeTemplate = template.Must(template.New("overtime").Parse(
		`Hello {{.Manager}},

{{.Employee}} has a pending overtime balance of {{.Balance}}.
Please review and approve or return the hours.
`))

	weeklyTemplate = template.Must(template.New("weekly").Parse(
		`Hello {{.Employee}},

Hours accounted last week: {{.Previous}}
Hours expected per week:   {{.Expected}}
Difference:                {{.Difference}}
`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// RecordedEntry runs the checks that follow saving an entry. It returns
// whether a sick leave escalation was sent.
func (n *Notifier) RecordedEntry(ctx context.Context, user User, entry Entry) (bool, error) {
	if entry.Daytype != DaytypeSick {
		return false, nil
	}
	notify, err := n.engine.ShouldNotifySick(ctx, user, entry)
	if err != nil || !notify {
		return false, err
	}
	if err := n.SickLeave(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

func (n *Notifier) SickLeave(ctx context.Context, user User) error {
	to, err := n.ManagerEmails(ctx, user)
	if err != nil {
		return err
	}
	body, err := render(sickTemplate, map[string]any{
		"Employee":  user.Name(),
		"Threshold": SickLeaveThreshold,
		"Window":    sickLeaveLookbackDays,
	})
	if err != nil {
		return err
	}
	return n.send(ctx, mail.Message{
		Subject: "Sick leave >= 30 days: " + user.Name(),
		Body:    body,
		From:    n.cfg.From,
		To:      to,
	})
}

// PendingOvertime sends a notice when the user's all-time balance is
// positive. It reports whether a message was sent.
func (n *Notifier) PendingOvertime(ctx context.Context, user User) (bool, error) {
	balance, err := n.engine.TotalBalance(ctx, user, generic.AllTime())
	if err != nil {
		return false, err
	}
	if !ShouldNotifyPendingOvertime(balance) {
		return false, nil
	}

	if build, ok := n.overtime[user.Market]; ok {
		msg := build(user, balance)
		if msg.From == "" {
			msg.From = n.cfg.From
		}
		return true, n.send(ctx, msg)
	}

	to, err := n.ManagerEmails(ctx, user)
	if err != nil {
		return false, err
	}
	to = append(append([]string(nil), to...), n.TeamLeadEmails(user)...)
	manager, err := n.ManagerName(ctx, user)
	if err != nil {
		return false, err
	}
	body, err := render(overtimeTemplate, map[string]any{
		"Manager":  manager,
		"Employee": user.Name(),
		"Balance":  DurationString(balance),
	})
	if err != nil {
		return false, err
	}
	return true, n.send(ctx, mail.Message{
		Subject: "Pending overtime: " + user.Name(),
		Body:    body,
		From:    n.cfg.From,
		To:      to,
	})
}

func (n *Notifier) WeeklyReminder(ctx context.Context, user User) error {
	previous, err := n.engine.PreviousWeekBalance(ctx, user)
	if err != nil {
		return err
	}
	expected := n.engine.ExpectedWeeklyBalance(user)
	body, err := render(weeklyTemplate, map[string]any{
		"Employee":   user.FirstName,
		"Previous":   DurationString(previous),
		"Expected":   DurationString(expected),
		"Difference": DurationString(previous.Sub(expected)),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, mail.Message{
		Subject: "Weekly timetracking reminder",
		Body:    body,
		From:    n.cfg.From,
		To:      []string{user.Email},
	})
}

func (n *Notifier) send(ctx context.Context, msg mail.Message) error {
	if err := n.sender.Send(ctx, msg); err != nil {
		n.log.Warn("notification not delivered", zap.String("subject", msg.Subject), zap.Error(err))
		return err
	}
	return nil
}
