// Package pg connects to PostgreSQL with pgx/v5 and applies goose
// migrations from an fs.FS.
//
// Connect retries with a linear backoff and honours context cancellation,
// so a service started alongside its database waits instead of crashing:
//
//	pool, err := pg.Connect(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, log); err != nil {
//		return err
//	}
//
// Healthcheck adapts the pool to the func(context.Context) error shape
// used by readiness checks.
package pg
