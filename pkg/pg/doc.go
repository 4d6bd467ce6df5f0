// Package pg provides helpers for connecting the security event audit trail
// to PostgreSQL.
//
// Connect retries pool creation using the supplied configuration and returns
// a ready *pgxpool.Pool; Migrate applies the goose migrations that create
// the audit tables; Healthcheck integrates the pool into liveness and
// readiness probes.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    log.Fatal(err)
//	}
//	recorder := secevent.NewRecorder(secevent.NewPostgresStorage(pool))
package pg
