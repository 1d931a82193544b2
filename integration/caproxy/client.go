package caproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds provider client configuration for environment-based loading.
type Config struct {
	BaseURL  string        `env:"CAPROXY_BASE_URL,required"`
	APIToken string        `env:"CAPROXY_API_TOKEN,required"`
	Timeout  time.Duration `env:"CAPROXY_TIMEOUT" envDefault:"15s"`
}

// HostnameStatus is the normalized provider-side state of a managed hostname.
type HostnameStatus string

const (
	HostnameStatusActive            HostnameStatus = "active"
	HostnameStatusPendingValidation HostnameStatus = "pending_validation"
	HostnameStatusUnknown           HostnameStatus = "unknown"
)

// CertStatus is the normalized provider-side state of a hostname's certificate.
type CertStatus string

const (
	CertStatusActive            CertStatus = "active"
	CertStatusPendingValidation CertStatus = "pending_validation"
	CertStatusValidationFailed  CertStatus = "validation_failed"
	CertStatusUnknown           CertStatus = "unknown"
)

// Status is the normalized snapshot of a managed hostname reported by the
// external CA provider. The domain state machine depends entirely on this
// vocabulary; provider-specific states never leak past this package.
type Status struct {
	HostnameStatus   HostnameStatus
	CertStatus       CertStatus
	ValidationErrors []string
	ExpiresOn        *time.Time
	IssuedOn         *time.Time
}

// Client is a thin adapter over the provider's custom-hostname HTTP API.
// All calls are authenticated with a bearer credential and bounded by the
// configured timeout. The client never mutates local state: failures are
// propagated to the caller, which owns the retry decision.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger configures structured logging for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a provider client from configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseURLInvalid, err)
	}
	if cfg.APIToken == "" {
		return nil, ErrAPITokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		client:   &http.Client{Timeout: timeout},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// hostnamePayload mirrors the provider's custom-hostname resource.
type hostnamePayload struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
	SSL      struct {
		Status           string `json:"status"`
		ValidationErrors []struct {
			Message string `json:"message"`
		} `json:"validation_errors"`
		ExpiresOn *time.Time `json:"expires_on"`
		IssuedOn  *time.Time `json:"issued_on"`
	} `json:"ssl"`
}

// HostnameStatus fetches the current validation and issuance state of a
// managed hostname by its provider-side reference id.
func (c *Client) HostnameStatus(ctx context.Context, hostnameID string) (Status, error) {
	if hostnameID == "" {
		return Status{}, ErrHostnameIDRequired
	}

	var payload hostnamePayload
	if err := c.do(ctx, http.MethodGet, "/custom_hostnames/"+url.PathEscape(hostnameID), nil, &payload); err != nil {
		return Status{}, err
	}

	return normalize(payload), nil
}

// RequestIssuance registers a hostname with the provider and starts
// certificate issuance. It returns the provider-side hostname reference id
// that all subsequent status queries use.
func (c *Client) RequestIssuance(ctx context.Context, domainName string) (string, error) {
	if domainName == "" {
		return "", ErrDomainNameRequired
	}

	body := map[string]any{
		"hostname": domainName,
		"ssl": map[string]any{
			"method": "cname",
			"type":   "dv",
		},
	}

	var payload hostnamePayload
	if err := c.do(ctx, http.MethodPost, "/custom_hostnames", body, &payload); err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", fmt.Errorf("%w: issuance response missing hostname id", ErrMalformedResponse)
	}

	c.logger.InfoContext(ctx, "issuance requested",
		slog.String("hostname", domainName),
		slog.String("hostname_id", payload.ID))

	return payload.ID, nil
}

// RequestRenewal asks the provider to re-run validation and reissue the
// certificate for an existing managed hostname.
func (c *Client) RequestRenewal(ctx context.Context, hostnameID string) error {
	if hostnameID == "" {
		return ErrHostnameIDRequired
	}

	body := map[string]any{
		"ssl": map[string]any{
			"method": "cname",
			"type":   "dv",
		},
	}

	var payload hostnamePayload
	return c.do(ctx, http.MethodPatch, "/custom_hostnames/"+url.PathEscape(hostnameID), body, &payload)
}

// do executes an authenticated request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("caproxy: failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("caproxy: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("caproxy: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned status %d", ErrProviderRequestFailed, method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return nil
}

// normalize maps provider-specific states into the internal vocabulary.
func normalize(payload hostnamePayload) Status {
	status := Status{
		HostnameStatus: normalizeHostnameStatus(payload.Status),
		CertStatus:     normalizeCertStatus(payload.SSL.Status),
		ExpiresOn:      payload.SSL.ExpiresOn,
		IssuedOn:       payload.SSL.IssuedOn,
	}

	for _, ve := range payload.SSL.ValidationErrors {
		if ve.Message != "" {
			status.ValidationErrors = append(status.ValidationErrors, ve.Message)
		}
	}

	return status
}

func normalizeHostnameStatus(s string) HostnameStatus {
	switch strings.ToLower(s) {
	case "active":
		return HostnameStatusActive
	case "pending", "pending_validation", "provisioning":
		return HostnameStatusPendingValidation
	default:
		return HostnameStatusUnknown
	}
}

func normalizeCertStatus(s string) CertStatus {
	switch strings.ToLower(s) {
	case "active":
		return CertStatusActive
	case "pending", "pending_validation", "pending_issuance", "pending_deployment", "initializing":
		return CertStatusPendingValidation
	case "validation_failed", "validation_timed_out", "expired", "deletion_failed":
		return CertStatusValidationFailed
	default:
		return CertStatusUnknown
	}
}
