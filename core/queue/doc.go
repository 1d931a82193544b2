// Package queue implements a persistent job queue with at-least-once
// delivery, bounded retries and a dead letter store.
//
// Producers create jobs through an Enqueuer; a Worker claims due jobs,
// routes them to typed handlers and settles the outcome. Failed jobs are
// retried with a linearly growing backoff until their attempt budget is
// exhausted, then moved to the dead letter store for inspection. Jobs
// whose worker died mid-flight are reclaimed once their lock expires.
//
// Two Storage implementations are provided: MemoryStorage for tests and
// local development, and PGStorage for production, which claims jobs
// with FOR UPDATE SKIP LOCKED so workers can be scaled horizontally.
//
// Usage:
//
//	storage, _ := queue.NewPGStorage(pool)
//
//	enqueuer, _ := queue.NewEnqueuer(storage)
//	_ = enqueuer.Enqueue(ctx, queue.JobTypeSyncStatus, payload,
//		queue.WithDomainID(domainID))
//
//	worker, _ := queue.NewWorker(storage, []queue.Handler{
//		queue.NewJobHandler(queue.JobTypeSyncStatus, handleSync),
//	})
//	err := worker.Start(ctx) // blocks until ctx is cancelled
package queue
