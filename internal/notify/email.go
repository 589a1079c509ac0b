package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/taskcycle/taskcycle/internal/domain"
)

// EmailConfig holds SMTP connection details.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// AddressFunc resolves a user ID to an email address.
type AddressFunc func(ctx context.Context, userID string) (string, error)

// DomainAddresser maps user IDs to addresses under a fixed mail domain.
func DomainAddresser(mailDomain string) AddressFunc {
	return func(_ context.Context, userID string) (string, error) {
		if userID == "" {
			return "", fmt.Errorf("empty user id")
		}
		return userID + "@" + mailDomain, nil
	}
}

// EmailSender delivers notifications via SMTP.
type EmailSender struct {
	cfg     EmailConfig
	resolve AddressFunc
}

// NewEmailSender creates an EmailSender. resolve maps user IDs to addresses.
func NewEmailSender(cfg EmailConfig, resolve AddressFunc) *EmailSender {
	return &EmailSender{cfg: cfg, resolve: resolve}
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, n Notification) error {
	ctx, span := otel.Tracer("notifier").Start(ctx, "sender.email")
	defer span.End()

	to, err := s.resolve(ctx, n.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "address lookup failed")
		return fmt.Errorf("resolve address for user %s: %w", n.UserID, err)
	}
	span.SetAttributes(attribute.String("email.to", to))

	subject, body := renderEmail(n)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := buildMIME(s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	// Run the blocking SMTP call in a goroutine so we respect ctx cancellation.
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		done <- result{err: smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, "smtp send failed")
			return fmt.Errorf("smtp send to %s: %w", to, res.err)
		}
		return nil
	case <-ctx.Done():
		err := fmt.Errorf("email send timed out: %w", ctx.Err())
		span.RecordError(err)
		span.SetStatus(codes.Error, "timeout")
		return err
	}
}

func renderEmail(n Notification) (subject, body string) {
	switch n.EventType {
	case domain.EventTaskDueSoon:
		subject = fmt.Sprintf("Task due soon: %s", n.Title)
	case domain.EventRecurringTaskDue:
		subject = fmt.Sprintf("Recurring task scheduled: %s", n.Title)
	default:
		subject = fmt.Sprintf("Task update: %s", n.Title)
	}
	body = fmt.Sprintf("Task: %s\nEvent: %s", n.Title, n.EventType)
	if n.DueDate != nil {
		body += "\nDue: " + *n.DueDate
	}
	return subject, body
}

func buildMIME(from, to, subject, body string) []byte {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body,
	)
	return []byte(msg)
}
