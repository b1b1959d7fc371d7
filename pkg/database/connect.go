package database

import (
	"context"
	"os"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	SQLiteDriver   = "sqlite"
	PostgresDriver = "postgres"
)

// PoolConfig tunes the destination connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenSource opens the SQLite file at path in query-only mode. The file must already exist.
func OpenSource(ctx context.Context, path string, logger ectologger.Logger) (DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "sqlite database %s is not readable", path)
	}

	db, err := sqlx.Open(SQLiteDriver, path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping sqlite database")
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"path": path,
	}).Info("Connected to source database")

	return NewDatabase(db, logger), nil
}

// OpenDestination connects to PostgreSQL using dsn
func OpenDestination(ctx context.Context, dsn string, pool PoolConfig, logger ectologger.Logger) (DB, error) {
	db, err := sqlx.Open(PostgresDriver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres database")
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres database")
	}

	logger.WithContext(ctx).Info("Connected to destination database")

	return NewDatabase(db, logger), nil
}
