// Package webhook delivers signed lifecycle event payloads to
// tenant-registered HTTP endpoints.
//
// Dispatch fans one event out to every enabled endpoint of an organization
// whose subscription set contains the event name. Each delivery carries the
// JSON envelope {event, timestamp, data}, a hex-encoded HMAC-SHA256
// signature of the body in X-Webhook-Signature, and the event name in
// X-Webhook-Event.
//
// Delivery runs on a bounded background worker pool fed by a local queue.
// The contract is deliberately best-effort: a delivery failure is logged
// and counted but never fails the caller, there is no retry or delivery
// log, and subscribers must tolerate duplicate or missing events. Stopping
// the dispatcher drains queued deliveries before returning.
//
//	dispatcher, err := webhook.NewDispatcherFromConfig(cfg, store, webhook.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	eg.Go(dispatcher.Run(ctx))
//
//	_ = dispatcher.Dispatch(ctx, orgID, "domain.active", payload)
//
// Receivers verify authenticity with the same secret:
//
//	if err := webhook.VerifySignature(secret, body, r.Header.Get(webhook.SignatureHeader)); err != nil {
//		http.Error(w, "invalid signature", http.StatusUnauthorized)
//		return
//	}
package webhook
