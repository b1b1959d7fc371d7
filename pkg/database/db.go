package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
)

// DB is the subset of *sqlx.DB the migration uses, plus transaction and dialect helpers
type DB interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	PingContext(ctx context.Context) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	SetConnMaxLifetime(d time.Duration)
	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	Stats() sql.DBStats

	// Flavor is the SQL dialect of the driver
	Flavor() sqlbuilder.Flavor
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)
}

type Database struct {
	*sqlx.DB
	logger ectologger.Logger
	flavor sqlbuilder.Flavor
}

// NewDatabase wraps db. Unknown drivers are treated as PostgreSQL.
func NewDatabase(db *sqlx.DB, logger ectologger.Logger) DB {
	flavor, err := ParseFlavor(db.DriverName())
	if err != nil {
		logger.WithError(err).Warn("Falling back to the PostgreSQL dialect")
	}

	return &Database{
		DB:     db,
		logger: logger,
		flavor: flavor,
	}
}

func (db *Database) Flavor() sqlbuilder.Flavor {
	return db.flavor
}

func (db *Database) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return GetTx(ctx, db.logger, db, opts)
}
