package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// EmailSender is the provider abstraction for transactional email delivery.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one transactional email.
type SendEmailParams struct {
	SendTo   string
	Subject  string
	BodyHTML string
	Tag      string
}

// recipientRegex is a simple regex for validating recipient addresses.
var recipientRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate checks that the parameters describe a sendable email.
func (p SendEmailParams) Validate() error {
	var errs []error

	if p.SendTo == "" {
		errs = append(errs, fmt.Errorf("recipient is required"))
	} else if !recipientRegex.MatchString(p.SendTo) {
		errs = append(errs, fmt.Errorf("recipient %q is not a valid email address", p.SendTo))
	}
	if p.Subject == "" {
		errs = append(errs, fmt.Errorf("subject is required"))
	}
	if p.BodyHTML == "" {
		errs = append(errs, fmt.Errorf("body is required"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidParams}, errs...)...)
	}
	return nil
}
