package caproxy_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certella/certella/integration/caproxy"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *caproxy.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := caproxy.New(caproxy.Config{
		BaseURL:  srv.URL,
		APIToken: "test-token",
	})
	require.NoError(t, err)

	return client
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires base URL", func(t *testing.T) {
		t.Parallel()

		_, err := caproxy.New(caproxy.Config{APIToken: "x"})
		assert.ErrorIs(t, err, caproxy.ErrBaseURLRequired)
	})

	t.Run("requires API token", func(t *testing.T) {
		t.Parallel()

		_, err := caproxy.New(caproxy.Config{BaseURL: "https://provider.test"})
		assert.ErrorIs(t, err, caproxy.ErrAPITokenRequired)
	})
}

func TestHostnameStatus(t *testing.T) {
	t.Parallel()

	t.Run("normalizes active hostname", func(t *testing.T) {
		t.Parallel()

		expires := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
		issued := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/custom_hostnames/ch-123", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":       "ch-123",
				"hostname": "example.com",
				"status":   "active",
				"ssl": map[string]any{
					"status":     "active",
					"expires_on": expires,
					"issued_on":  issued,
				},
			})
		})

		status, err := client.HostnameStatus(context.Background(), "ch-123")
		require.NoError(t, err)
		assert.Equal(t, caproxy.HostnameStatusActive, status.HostnameStatus)
		assert.Equal(t, caproxy.CertStatusActive, status.CertStatus)
		require.NotNil(t, status.ExpiresOn)
		assert.True(t, status.ExpiresOn.Equal(expires))
		require.NotNil(t, status.IssuedOn)
		assert.True(t, status.IssuedOn.Equal(issued))
		assert.Empty(t, status.ValidationErrors)
	})

	t.Run("normalizes pending and failed states", func(t *testing.T) {
		t.Parallel()

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"id": "ch-456",
				"status": "pending",
				"ssl": {
					"status": "validation_timed_out",
					"validation_errors": [{"message": "CAA record blocks issuance"}]
				}
			}`))
		})

		status, err := client.HostnameStatus(context.Background(), "ch-456")
		require.NoError(t, err)
		assert.Equal(t, caproxy.HostnameStatusPendingValidation, status.HostnameStatus)
		assert.Equal(t, caproxy.CertStatusValidationFailed, status.CertStatus)
		assert.Equal(t, []string{"CAA record blocks issuance"}, status.ValidationErrors)
	})

	t.Run("unknown provider states", func(t *testing.T) {
		t.Parallel()

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"ch-789","status":"moved","ssl":{"status":"staging"}}`))
		})

		status, err := client.HostnameStatus(context.Background(), "ch-789")
		require.NoError(t, err)
		assert.Equal(t, caproxy.HostnameStatusUnknown, status.HostnameStatus)
		assert.Equal(t, caproxy.CertStatusUnknown, status.CertStatus)
	})

	t.Run("non-success response is an error", func(t *testing.T) {
		t.Parallel()

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.HostnameStatus(context.Background(), "ch-123")
		assert.ErrorIs(t, err, caproxy.ErrProviderRequestFailed)
	})

	t.Run("malformed payload is an error", func(t *testing.T) {
		t.Parallel()

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{broken`))
		})

		_, err := client.HostnameStatus(context.Background(), "ch-123")
		assert.ErrorIs(t, err, caproxy.ErrMalformedResponse)
	})

	t.Run("empty hostname id", func(t *testing.T) {
		t.Parallel()

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := client.HostnameStatus(context.Background(), "")
		assert.ErrorIs(t, err, caproxy.ErrHostnameIDRequired)
	})
}

func TestRequestIssuance(t *testing.T) {
	t.Parallel()

	t.Run("returns provider hostname id", func(t *testing.T) {
		t.Parallel()

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/custom_hostnames", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "shop.example.com", body["hostname"])

			_, _ = w.Write([]byte(`{"id":"ch-new","status":"pending","ssl":{"status":"pending_validation"}}`))
		})

		id, err := client.RequestIssuance(context.Background(), "shop.example.com")
		require.NoError(t, err)
		assert.Equal(t, "ch-new", id)
	})

	t.Run("missing id in response", func(t *testing.T) {
		t.Parallel()

		client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"pending","ssl":{"status":"pending_validation"}}`))
		})

		_, err := client.RequestIssuance(context.Background(), "shop.example.com")
		assert.ErrorIs(t, err, caproxy.ErrMalformedResponse)
	})
}

func TestRequestRenewal(t *testing.T) {
	t.Parallel()

	client := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/custom_hostnames/ch-123", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"ch-123","status":"pending","ssl":{"status":"pending_validation"}}`))
	})

	assert.NoError(t, client.RequestRenewal(context.Background(), "ch-123"))
}
