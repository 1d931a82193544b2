// Package async provides utilities for asynchronous programming with Go generics.
//
// This package implements a Future pattern for non-blocking operations with
// timeout support and coordination utilities for managing multiple
// asynchronous computations.
//
// Basic asynchronous operation:
//
//	future := async.Exec(ctx, domainID, syncer.SyncStatus)
//
//	// Do other work...
//
//	if err := future.Await(); err != nil {
//		log.Print(err)
//	}
//
// Fan out independent work and wait for every branch to settle, tolerating
// partial failure:
//
//	futures := make([]*async.ExecFuture, 0, len(ids))
//	for _, id := range ids {
//		futures = append(futures, async.Exec(ctx, id, syncer.SyncStatus))
//	}
//	errs := async.AllSettled(futures...)
package async
