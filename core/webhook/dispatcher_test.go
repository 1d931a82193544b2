package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certella/certella/core/webhook"
)

// receivedRequest captures one delivery for assertions.
type receivedRequest struct {
	body      []byte
	signature string
	event     string
}

// startDispatcher runs the dispatcher until the test finishes.
func startDispatcher(t *testing.T, store webhook.EndpointStore, opts ...webhook.DispatcherOption) *webhook.Dispatcher {
	t.Helper()

	dispatcher, err := webhook.NewDispatcher(store, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		_ = dispatcher.Stop()
		cancel()
	})

	go func() { _ = dispatcher.Start(ctx) }()

	require.Eventually(t, func() bool {
		return dispatcher.Stats().IsRunning
	}, time.Second, 10*time.Millisecond)

	return dispatcher
}

func endpoint(orgID uuid.UUID, url, secret string, enabled bool, events ...string) webhook.Endpoint {
	return webhook.Endpoint{
		ID:             uuid.New(),
		OrganizationID: orgID,
		URL:            url,
		Secret:         secret,
		Events:         events,
		Enabled:        enabled,
	}
}

func TestSign(t *testing.T) {
	t.Parallel()

	t.Run("deterministic hex digest", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{"event":"domain.active"}`)
		sig := webhook.Sign("secret", payload)

		assert.Len(t, sig, 64)
		assert.Equal(t, sig, webhook.Sign("secret", payload))
		assert.NotEqual(t, sig, webhook.Sign("other-secret", payload))
	})

	t.Run("verify round-trip", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{"event":"domain.error"}`)
		sig := webhook.Sign("secret", payload)

		assert.NoError(t, webhook.VerifySignature("secret", payload, sig))
		assert.ErrorIs(t, webhook.VerifySignature("wrong", payload, sig), webhook.ErrInvalidSignature)
		assert.ErrorIs(t, webhook.VerifySignature("secret", []byte("tampered"), sig), webhook.ErrInvalidSignature)
	})
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("delivers signed envelope", func(t *testing.T) {
		t.Parallel()

		received := make(chan receivedRequest, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			received <- receivedRequest{
				body:      body,
				signature: r.Header.Get(webhook.SignatureHeader),
				event:     r.Header.Get(webhook.EventHeader),
			}
		}))
		t.Cleanup(srv.Close)

		orgID := uuid.New()
		store := webhook.NewMemoryStore()
		store.Add(endpoint(orgID, srv.URL, "s3cret", true, "domain.active"))

		dispatcher := startDispatcher(t, store)

		err := dispatcher.Dispatch(context.Background(), orgID, "domain.active", map[string]string{"domain": "example.com"})
		require.NoError(t, err)

		select {
		case req := <-received:
			assert.Equal(t, "domain.active", req.event)
			assert.NoError(t, webhook.VerifySignature("s3cret", req.body, req.signature))

			var envelope webhook.Envelope
			require.NoError(t, json.Unmarshal(req.body, &envelope))
			assert.Equal(t, "domain.active", envelope.Event)
			assert.WithinDuration(t, time.Now().UTC(), envelope.Timestamp, time.Minute)
		case <-time.After(2 * time.Second):
			t.Fatal("delivery not received")
		}
	})

	t.Run("filters by subscription and enabled flag", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		t.Cleanup(srv.Close)

		orgID := uuid.New()
		store := webhook.NewMemoryStore()
		store.Add(endpoint(orgID, srv.URL, "a", true, "domain.error"))  // wrong event
		store.Add(endpoint(orgID, srv.URL, "b", false, "domain.active")) // disabled
		store.Add(endpoint(uuid.New(), srv.URL, "c", true, "domain.active")) // other org

		dispatcher := startDispatcher(t, store)

		require.NoError(t, dispatcher.Dispatch(context.Background(), orgID, "domain.active", nil))

		// Give the pool time to (incorrectly) deliver anything.
		time.Sleep(200 * time.Millisecond)
		assert.Zero(t, hits.Load())
	})

	t.Run("fan-out isolation on endpoint failure", func(t *testing.T) {
		t.Parallel()

		var ok1, ok2 atomic.Int32
		good1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ok1.Add(1) }))
		t.Cleanup(good1.Close)
		good2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ok2.Add(1) }))
		t.Cleanup(good2.Close)

		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		broken.Close() // connection refused

		orgID := uuid.New()
		store := webhook.NewMemoryStore()
		store.Add(endpoint(orgID, good1.URL, "s1", true, "domain.active"))
		store.Add(endpoint(orgID, broken.URL, "s2", true, "domain.active"))
		store.Add(endpoint(orgID, good2.URL, "s3", true, "domain.active"))

		dispatcher := startDispatcher(t, store)

		require.NoError(t, dispatcher.Dispatch(context.Background(), orgID, "domain.active", nil))

		require.Eventually(t, func() bool {
			return ok1.Load() == 1 && ok2.Load() == 1 && dispatcher.Stats().Failed == 1
		}, 3*time.Second, 20*time.Millisecond)
	})

	t.Run("no endpoints is a no-op", func(t *testing.T) {
		t.Parallel()

		dispatcher := startDispatcher(t, webhook.NewMemoryStore())
		assert.NoError(t, dispatcher.Dispatch(context.Background(), uuid.New(), "domain.active", nil))
	})
}

func TestDispatcherLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("stop drains queued deliveries", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
			hits.Add(1)
		}))
		t.Cleanup(srv.Close)

		orgID := uuid.New()
		store := webhook.NewMemoryStore()
		for i := 0; i < 5; i++ {
			store.Add(endpoint(orgID, srv.URL, "s", true, "domain.active"))
		}

		dispatcher, err := webhook.NewDispatcher(store, webhook.WithWorkers(2))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = dispatcher.Start(ctx) }()

		require.Eventually(t, func() bool {
			return dispatcher.Stats().IsRunning
		}, time.Second, 10*time.Millisecond)

		require.NoError(t, dispatcher.Dispatch(context.Background(), orgID, "domain.active", nil))
		require.NoError(t, dispatcher.Stop())

		assert.Equal(t, int32(5), hits.Load())
	})

	t.Run("dispatch after stop drops silently", func(t *testing.T) {
		t.Parallel()

		orgID := uuid.New()
		store := webhook.NewMemoryStore()
		store.Add(endpoint(orgID, "http://127.0.0.1:1", "s", true, "domain.active"))

		dispatcher, err := webhook.NewDispatcher(store)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = dispatcher.Start(ctx) }()

		require.Eventually(t, func() bool {
			return dispatcher.Stats().IsRunning
		}, time.Second, 10*time.Millisecond)
		require.NoError(t, dispatcher.Stop())

		require.NoError(t, dispatcher.Dispatch(context.Background(), orgID, "domain.active", nil))
		assert.Equal(t, int64(1), dispatcher.Stats().Dropped)
	})

	t.Run("restart after stop delivers again", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		t.Cleanup(srv.Close)

		orgID := uuid.New()
		store := webhook.NewMemoryStore()
		store.Add(endpoint(orgID, srv.URL, "s3cret", true, "domain.active"))

		dispatcher, err := webhook.NewDispatcher(store)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = dispatcher.Start(ctx) }()
		require.Eventually(t, func() bool {
			return dispatcher.Stats().IsRunning
		}, time.Second, 10*time.Millisecond)
		require.NoError(t, dispatcher.Stop())

		go func() { _ = dispatcher.Start(ctx) }()
		require.Eventually(t, func() bool {
			return dispatcher.Stats().IsRunning
		}, time.Second, 10*time.Millisecond)
		t.Cleanup(func() { _ = dispatcher.Stop() })

		require.NotPanics(t, func() {
			require.NoError(t, dispatcher.Dispatch(context.Background(), orgID, "domain.active", nil))
		})
		require.Eventually(t, func() bool {
			return hits.Load() == 1
		}, 3*time.Second, 10*time.Millisecond)
		assert.Equal(t, int64(0), dispatcher.Stats().Dropped)
	})

	t.Run("healthcheck reflects running state", func(t *testing.T) {
		t.Parallel()

		dispatcher, err := webhook.NewDispatcher(webhook.NewMemoryStore())
		require.NoError(t, err)

		assert.ErrorIs(t, dispatcher.Healthcheck(context.Background()), webhook.ErrDispatcherNotRunning)
	})
}
