package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/certella/certella/core/email"
	"github.com/certella/certella/core/queue"
)

// JobPayload is the body of domain lifecycle jobs.
type JobPayload struct {
	DomainID uuid.UUID `json:"domain_id"`
}

// EmailPayload is the body of notification jobs. The recipient is
// resolved at enqueue time so the handler needs no domain lookup.
type EmailPayload struct {
	DomainID  uuid.UUID `json:"domain_id"`
	Domain    string    `json:"domain"`
	Recipient string    `json:"recipient"`
}

// Handlers returns the queue handlers for the domain lifecycle job
// types. Register them on a worker together with a notification handler.
func (s *Syncer) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewJobHandler(queue.JobTypeSyncStatus, func(ctx context.Context, p JobPayload) error {
			return s.SyncStatus(ctx, p.DomainID)
		}),
		queue.NewJobHandler(queue.JobTypeDNSCheck, func(ctx context.Context, p JobPayload) error {
			return s.CheckDNS(ctx, p.DomainID)
		}),
		queue.NewJobHandler(queue.JobTypeStartIssuance, func(ctx context.Context, p JobPayload) error {
			return s.StartIssuance(ctx, p.DomainID)
		}),
		queue.NewJobHandler(queue.JobTypeRenewal, func(ctx context.Context, p JobPayload) error {
			return s.Renew(ctx, p.DomainID)
		}),
	}
}

// Notifier sends lifecycle notification emails.
type Notifier struct {
	emails email.EmailSender
	log    *slog.Logger
}

// NewNotifier creates a Notifier on top of an email sender.
func NewNotifier(emails email.EmailSender, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{emails: emails, log: log}
}

// Handler returns the queue handler for notification jobs.
func (n *Notifier) Handler() queue.Handler {
	return queue.NewJobHandler(queue.JobTypeSendEmail, n.send)
}

func (n *Notifier) send(ctx context.Context, p EmailPayload) error {
	if p.Recipient == "" {
		n.log.WarnContext(ctx, "notification job without recipient, skipping",
			slog.String("domain_id", p.DomainID.String()))
		return nil
	}

	err := n.emails.SendEmail(ctx, email.SendEmailParams{
		SendTo:  p.Recipient,
		Subject: fmt.Sprintf("Your domain %s is live", p.Domain),
		BodyHTML: fmt.Sprintf(
			"<p>The certificate for <strong>%s</strong> has been issued and the domain is now serving traffic.</p>"+
				"<p>No further action is needed.</p>", p.Domain),
		Tag: "domain-activated",
	})
	if err != nil {
		return fmt.Errorf("send activation email for %s: %w", p.Domain, err)
	}
	return nil
}
