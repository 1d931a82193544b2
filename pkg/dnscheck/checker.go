package dnscheck

import (
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

// challengePrefix is the well-known subdomain a tenant must delegate.
const challengePrefix = "_acme-challenge."

// cnameRecordType is the DNS record type code for CNAME answers.
const cnameRecordType = 5

// Config holds checker configuration for environment-based loading.
type Config struct {
	ResolverURL string        `env:"DNSCHECK_RESOLVER_URL" envDefault:"https://cloudflare-dns.com/dns-query"`
	Timeout     time.Duration `env:"DNSCHECK_TIMEOUT" envDefault:"10s"`
}

// Result is the outcome of a single delegation check.
// A failed check carries a human-readable Error suitable for surfacing
// to the tenant; it is not a transport failure.
type Result struct {
	Success        bool   `json:"success"`
	ObservedTarget string `json:"observed_target,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Checker verifies CNAME delegation through a DNS-over-HTTPS resolver.
// It performs a pure query-and-compare operation with no side effects.
type Checker struct {
	resolverURL *url.URL
	client      *http.Client
	logger      *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient overrides the HTTP client used for resolver queries.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger configures structured logging for the checker.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a delegation checker from configuration.
func New(cfg Config, opts ...Option) (*Checker, error) {
	if cfg.ResolverURL == "" {
		return nil, ErrResolverURLRequired
	}
	resolverURL, err := url.Parse(cfg.ResolverURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolverURLInvalid, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Checker{
		resolverURL: resolverURL,
		client:      &http.Client{Timeout: timeout},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// dohAnswer is a single resource record in a DoH JSON response.
type dohAnswer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	Data string `json:"data"`
}

// dohResponse is the subset of the application/dns-json payload we consume.
type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

// CheckDelegation resolves the CNAME record for _acme-challenge.<domain> and
// compares it against the expected delegation target. Comparison is
// case-insensitive with trailing root dots stripped from both sides.
//
// A non-nil error indicates a transport-level failure (network, malformed
// payload) that the caller may retry. A Result with Success=false describes
// a definitive check outcome: missing record, target mismatch, or a
// non-success resolver status.
func (c *Checker) CheckDelegation(ctx context.Context, domain, expectedTarget string) (Result, error) {
	name := challengePrefix + strings.TrimSuffix(strings.ToLower(domain), ".")

	// Preserve any query parameters the configured resolver URL carries.
	reqURL := *c.resolverURL
	query := reqURL.Query()
	query.Set("name", name)
	query.Set("type", "CNAME")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("dnscheck: failed to build resolver request: %w", err)
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("dnscheck: resolver query failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.DebugContext(ctx, "resolver returned non-success status",
			slog.String("domain", domain),
			slog.Int("status", resp.StatusCode))
		return Result{
			Success: false,
			Error:   fmt.Sprintf("DNS query failed with status %d", resp.StatusCode),
		}, nil
	}

	var payload dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("dnscheck: failed to decode resolver response: %w", err)
	}

	observed := ""
	for _, answer := range payload.Answer {
		if answer.Type == cnameRecordType {
			observed = normalizeTarget(answer.Data)
			break
		}
	}

	if observed == "" {
		return Result{
			Success: false,
			Error:   "CNAME record not found",
		}, nil
	}

	expected := normalizeTarget(expectedTarget)
	if !strings.EqualFold(observed, expected) {
		return Result{
			Success:        false,
			ObservedTarget: observed,
			Error:          fmt.Sprintf("CNAME target mismatch. Expected %s, got %s", expected, observed),
		}, nil
	}

	c.logger.DebugContext(ctx, "delegation verified",
		slog.String("domain", domain),
		slog.String("target", observed))

	return Result{
		Success:        true,
		ObservedTarget: observed,
	}, nil
}

// normalizeTarget strips the trailing root dot and lowercases a DNS name.
func normalizeTarget(target string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(target), "."))
}
