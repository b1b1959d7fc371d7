// Package testutil provides SQLite fixtures shared by the package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Ramsey-B/fern/pkg/database"
)

// DestinationSchema is the schema name the SQLite destination exposes its tables under
const DestinationSchema = "main"

// sourceDDL mirrors the legacy SQLite layout. Columns are nullable so tests can seed gaps.
var sourceDDL = []string{
	`CREATE TABLE person (id TEXT, full_name TEXT, created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE genre (id TEXT, name TEXT, description TEXT, created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE film_work (id TEXT, title TEXT, description TEXT, creation_date DATE, file_path TEXT,
		rating FLOAT, type TEXT, created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE genre_film_work (id TEXT, film_work_id TEXT, genre_id TEXT, created_at TIMESTAMP)`,
	`CREATE TABLE person_film_work (id TEXT, film_work_id TEXT, person_id TEXT, role TEXT, created_at TIMESTAMP)`,
}

// destinationDDL mirrors the content schema constraints that matter to the writer
var destinationDDL = []string{
	`CREATE TABLE person (id TEXT PRIMARY KEY, full_name TEXT NOT NULL, created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE genre (id TEXT PRIMARY KEY, name TEXT NOT NULL, description TEXT, created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE film_work (id TEXT PRIMARY KEY, title TEXT NOT NULL, description TEXT, creation_date DATE,
		file_path TEXT, rating FLOAT, type TEXT NOT NULL, created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE genre_film_work (id TEXT PRIMARY KEY, film_work_id TEXT NOT NULL, genre_id TEXT NOT NULL,
		created_at TIMESTAMP, UNIQUE (film_work_id, genre_id))`,
	`CREATE TABLE person_film_work (id TEXT PRIMARY KEY, film_work_id TEXT NOT NULL, person_id TEXT NOT NULL,
		role TEXT NOT NULL, created_at TIMESTAMP)`,
}

// Logger returns a logger that discards everything
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// NewSourceDB creates an empty legacy-layout SQLite database
func NewSourceDB(t *testing.T) database.DB {
	t.Helper()
	return newSQLite(t, "source.db", sourceDDL)
}

// NewDestinationDB creates an empty SQLite database with the destination constraints
func NewDestinationDB(t *testing.T) database.DB {
	t.Helper()
	return newSQLite(t, "destination.db", destinationDDL)
}

// Exec runs a statement against db and fails the test on error
func Exec(t *testing.T, db database.DB, query string, args ...any) {
	t.Helper()
	_, err := db.ExecContext(t.Context(), query, args...)
	require.NoError(t, err)
}

// Count returns the number of rows in table
func Count(t *testing.T, db database.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(t.Context(), &n, "SELECT COUNT(*) FROM "+table))
	return n
}

// IDs returns every id in table, sorted
func IDs(t *testing.T, db database.DB, table string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, db.SelectContext(t.Context(), &ids, "SELECT id FROM "+table+" ORDER BY id"))
	return ids
}

func newSQLite(t *testing.T, name string, ddl []string) database.DB {
	t.Helper()

	db, err := sqlx.Open(database.SQLiteDriver, filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	// one connection keeps every statement on the same SQLite handle
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return database.NewDatabase(db, Logger())
}
