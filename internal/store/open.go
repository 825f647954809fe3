package store

import (
	"context"
	"log/slog"

	"bankgame/internal/db"
)

// Open picks Postgres when databaseURL is set and the JSON file otherwise.
// The returned close func releases the pool, if any.
func Open(ctx context.Context, databaseURL, statePath string, logger *slog.Logger) (Store, func(), error) {
	if databaseURL == "" {
		logger.Info("using file store", "path", statePath)
		return NewFileStore(statePath), func() {}, nil
	}
	pool, err := db.Connect(ctx, databaseURL, db.DefaultPoolOptions())
	if err != nil {
		return nil, nil, &PersistenceError{Op: "connect", Err: err}
	}
	pg := NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("using postgres store")
	return pg, pool.Close, nil
}
