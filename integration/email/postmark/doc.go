// Package postmark implements the email.EmailSender interface on top of the
// Postmark transactional email API. It delivers the lifecycle notification
// emails (certificate issued, issuance failed) produced by send_email jobs.
package postmark
