/*
Package mail delivers notification messages.

PURPOSE:
  The tracker decides when a message is due; this package only delivers
  it. Delivery is fire-and-forget by default: a failed send is logged and
  swallowed so that it never leaks into a balance computation. Set
  FailSilently to false to get the error back instead.

SENDERS:
  SMTPSender:  plain SMTP with optional PLAIN auth
  LogSender:   writes the message to the logger (development, tests)
  AsyncSender: wraps another sender and delivers on a goroutine

USAGE:
  sender := mail.NewAsyncSender(mail.NewSMTPSender(cfg), log, true)
  err := sender.Send(ctx, mail.Message{Subject: "...", To: []string{"a@b"}})
*/
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultFrom is the sender address used when a message has none.
const DefaultFrom = "timetracker@unmonitored.com"

var ErrNoRecipients = errors.New("message has no recipients")

type Message struct {
	Subject string
	Body    string
	From    string
	To      []string
}

func (m Message) validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	return nil
}

// bytes renders the message as an RFC 5322 text body.
func (m Message) bytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// SMTP
// =============================================================================

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = s.cfg.From
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, msg.From, msg.To, msg.bytes()); err != nil {
		return fmt.Errorf("smtp send %q: %w", msg.Subject, err)
	}
	return nil
}

// =============================================================================
// LOG
// =============================================================================

// LogSender records messages instead of sending them.
type LogSender struct {
	log *zap.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = DefaultFrom
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.log.Info("mail",
		zap.String("subject", msg.Subject),
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
	)
	return nil
}

// Sent returns a copy of every message sent so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// =============================================================================
// ASYNC
// =============================================================================

// AsyncSender hands messages to the next sender on a goroutine. With
// failSilently set, Send returns immediately and errors are only logged.
// Otherwise Send waits for delivery and returns its error.
type AsyncSender struct {
	next         Sender
	log          *zap.Logger
	failSilently bool
	wg           sync.WaitGroup
}

func NewAsyncSender(next Sender, log *zap.Logger, failSilently bool) *AsyncSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &AsyncSender{next: next, log: log, failSilently: failSilently}
}

func (s *AsyncSender) Send(ctx context.Context, msg Message) error {
	if !s.failSilently {
		return s.next.Send(ctx, msg)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// detached from the request so delivery outlives it
		if err := s.next.Send(context.WithoutCancel(ctx), msg); err != nil {
			s.log.Error("mail delivery failed",
				zap.String("subject", msg.Subject),
				zap.Strings("to", msg.To),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until every in-flight delivery has finished.
func (s *AsyncSender) Wait() { s.wg.Wait() }
