// Package domain owns the custom domain certificate lifecycle.
//
// A domain moves through four states: pending_cname while the tenant
// sets up the validation CNAME, issuing while the certificate authority
// validates and issues, active once the certificate serves, and error on
// permanent validation failure. The Syncer drives transitions by pulling
// provider state and applying a pure status mapping; every transition is
// audited and published to webhook subscribers, and the first transition
// to active queues a notification email.
//
// The Poller schedules periodic syncs: in-flight domains every tick,
// active domains once their last sync goes stale. Both components are
// idempotent under at-least-once job delivery: re-running a sync against
// unchanged provider state writes the same snapshot and emits nothing.
package domain
