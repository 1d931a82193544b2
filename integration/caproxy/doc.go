// Package caproxy is a thin adapter over the external CA-fronting hosting
// provider's custom-hostname API.
//
// The provider performs the actual ACME handshake and certificate issuance;
// this client only registers hostnames, requests renewals, and reads back
// validation and issuance state. Provider-specific status strings are
// normalized into a small internal vocabulary (HostnameStatus, CertStatus)
// that the domain state machine consumes.
//
// Failures never mutate domain state here: any non-success response or
// malformed payload is returned as an error and the enclosing job is
// retried by the queue policy.
package caproxy
