// Package pg provides PostgreSQL connectivity for the worker: pooled
// connections via pgxpool, startup migrations via goose and a readiness
// probe.
//
// Connect retries transient failures with linear backoff and pings the
// database before returning. Migrate runs the embedded SQL migrations at
// startup so a freshly provisioned database is usable without manual
// steps.
//
// Usage:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, logger); err != nil {
//		return err
//	}
package pg
