package store

import (
	"context"
	"database/sql"

	"voice-console/internal/config"
	"voice-console/pkg/utils"
)

// Open connects to the configured backend and applies the schema.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		db, err = utils.OpenSQLite(ctx, cfg.DB.Path)
		dialect = SQLite
	default:
		db, err = utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PoolConfig{})
		dialect = Postgres
	}
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
