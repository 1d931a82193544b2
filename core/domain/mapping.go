package domain

import (
	"strings"

	"github.com/certella/certella/integration/caproxy"
)

// StatusFromProvider derives the domain status from the provider's view.
// The mapping is deliberately conservative: anything that is not a clear
// success or a clear failure stays in an in-flight state.
func StatusFromProvider(ps caproxy.Status) Status {
	switch {
	case ps.CertStatus == caproxy.CertStatusActive && ps.HostnameStatus == caproxy.HostnameStatusActive:
		return StatusActive
	case ps.CertStatus == caproxy.CertStatusValidationFailed:
		return StatusError
	case ps.HostnameStatus == caproxy.HostnameStatusPendingValidation:
		return StatusIssuing
	default:
		return StatusPendingCNAME
	}
}

// errorMessageFromProvider flattens the provider's validation errors into
// a user-facing message. Empty unless the mapped status is error.
func errorMessageFromProvider(next Status, ps caproxy.Status) string {
	if next != StatusError {
		return ""
	}
	if len(ps.ValidationErrors) == 0 {
		return "certificate validation failed"
	}
	return strings.Join(ps.ValidationErrors, "; ")
}
