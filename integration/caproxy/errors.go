package caproxy

import "errors"

var (
	// ErrBaseURLRequired is returned when no provider base URL is configured.
	ErrBaseURLRequired = errors.New("caproxy: base URL is required")

	// ErrBaseURLInvalid is returned when the configured base URL cannot be parsed.
	ErrBaseURLInvalid = errors.New("caproxy: base URL is invalid")

	// ErrAPITokenRequired is returned when no bearer credential is configured.
	ErrAPITokenRequired = errors.New("caproxy: API token is required")

	// ErrHostnameIDRequired is returned when an operation is missing the
	// provider-side hostname reference id.
	ErrHostnameIDRequired = errors.New("caproxy: hostname id is required")

	// ErrDomainNameRequired is returned when issuance is requested without a domain.
	ErrDomainNameRequired = errors.New("caproxy: domain name is required")

	// ErrProviderRequestFailed is returned for non-success provider responses.
	// Jobs hitting this error are retried by the queue policy.
	ErrProviderRequestFailed = errors.New("caproxy: provider request failed")

	// ErrMalformedResponse is returned when the provider payload cannot be decoded.
	ErrMalformedResponse = errors.New("caproxy: malformed provider response")
)
