package dnscheck

import "errors"

var (
	// ErrResolverURLRequired is returned when no resolver URL is configured.
	ErrResolverURLRequired = errors.New("dnscheck: resolver URL is required")

	// ErrResolverURLInvalid is returned when the configured resolver URL cannot be parsed.
	ErrResolverURLInvalid = errors.New("dnscheck: resolver URL is invalid")
)
