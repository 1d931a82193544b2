package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender implements EmailSender for local development. Instead of
// calling an email provider it writes each message as an HTML file to a
// directory, with delivery metadata in a comment header.
type DevSender struct {
	dir string
}

// NewDevSender creates a development email sender that saves emails to disk.
// The directory is created on first send if it doesn't exist.
func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir}
}

// SendEmail writes the email to the configured directory.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSendEmail, err)
	}

	now := time.Now()
	name := params.Tag
	if name == "" {
		name = params.Subject
	}
	filename := fmt.Sprintf("%s_%s.html", now.Format("2006_01_02_150405"), safeFilename(name))

	content := fmt.Sprintf("<!-- to: %s | subject: %s | tag: %s | sent: %s -->\n%s",
		params.SendTo, params.Subject, params.Tag, now.Format(time.RFC3339), params.BodyHTML)

	if err := os.WriteFile(filepath.Join(d.dir, filename), []byte(content), 0644); err != nil {
		return fmt.Errorf("%w: failed to write file: %v", ErrFailedToSendEmail, err)
	}

	return nil
}

// unsafeChars matches characters that are not filesystem-safe.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// safeFilename converts an arbitrary identifier into a safe filename.
func safeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeChars.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}

	return strings.ToLower(s)
}
