// Package email provides email sending functionality with support for
// different providers and development mode.
//
// The package centers around the EmailSender interface, which can be
// implemented by different email providers:
//
//	// For development
//	sender := email.NewDevSender("./dev_emails")
//
//	params := email.SendEmailParams{
//		SendTo:   "admin@example.com",
//		Subject:  "Certificate issued for example.com",
//		BodyHTML: "<p>Your certificate is active.</p>",
//		Tag:      "domain_active",
//	}
//
//	if err := sender.SendEmail(ctx, params); err != nil {
//		log.Print(err)
//	}
//
// Production deployments use a provider-backed implementation such as
// integration/email/postmark.
package email
