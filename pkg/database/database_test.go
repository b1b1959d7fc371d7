package database_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestParseFlavor(t *testing.T) {
	tests := []struct {
		driver  string
		want    sqlbuilder.Flavor
		wantErr bool
	}{
		{driver: "postgres", want: sqlbuilder.PostgreSQL},
		{driver: "pgx", want: sqlbuilder.PostgreSQL},
		{driver: "sqlite", want: sqlbuilder.SQLite},
		{driver: "SQLite3", want: sqlbuilder.SQLite},
		{driver: "mysql", want: sqlbuilder.PostgreSQL, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := database.ParseFlavor(tt.driver)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQualifiedTable(t *testing.T) {
	assert.Equal(t, "content.genre", database.QualifiedTable("content", "genre"))
	assert.Equal(t, "genre", database.QualifiedTable("", "genre"))
}

func TestInsertInto_OnConflictDoNothing(t *testing.T) {
	s := database.NewStruct(models.Person{})
	ib := s.InsertInto("content.person", models.Person{FullName: "Ann"})
	ib.OnConflictDoNothing("id")
	query, args := ib.Build()

	assert.True(t, strings.HasPrefix(query, "INSERT INTO content.person "), query)
	assert.True(t, strings.HasSuffix(query, "ON CONFLICT (id) DO NOTHING"), query)
	assert.Contains(t, query, "$1")
	assert.Len(t, args, 4)
}

func TestNewDatabase_Flavor(t *testing.T) {
	db := testutil.NewDestinationDB(t)
	assert.Equal(t, sqlbuilder.SQLite, db.Flavor())
}

func TestGetTx_JoinsTransactionInContext(t *testing.T) {
	db := testutil.NewDestinationDB(t)

	ctx, outer, err := db.GetTx(t.Context(), nil)
	require.NoError(t, err)
	defer outer.Rollback(ctx)
	assert.False(t, outer.IsBorrowed())

	inner := database.WithTx(ctx, outer)
	_, borrowed, err := db.GetTx(inner, nil)
	require.NoError(t, err)
	assert.True(t, borrowed.IsBorrowed())

	_, err = borrowed.ExecContext(inner, `INSERT INTO genre (id, name) VALUES ('a', 'Drama')`)
	require.NoError(t, err)
	// commit of a borrowed transaction leaves the outer one open
	require.NoError(t, borrowed.Commit(inner))
	assert.True(t, outer.IsOpen())

	require.NoError(t, outer.Rollback(ctx))
	assert.Equal(t, 0, testutil.Count(t, db, "genre"))
}

func TestSavepoint_RollsBackOneStatement(t *testing.T) {
	db := testutil.NewDestinationDB(t)

	ctx, tx, err := db.GetTx(t.Context(), nil)
	require.NoError(t, err)

	_, err = tx.ExecContext(ctx, `INSERT INTO genre (id, name) VALUES ('a', 'Drama')`)
	require.NoError(t, err)

	require.NoError(t, tx.Savepoint(ctx, "row_1"))
	_, err = tx.ExecContext(ctx, `INSERT INTO genre (id, name) VALUES ('b', 'Comedy')`)
	require.NoError(t, err)
	require.NoError(t, tx.RollbackToSavepoint(ctx, "row_1"))
	require.NoError(t, tx.ReleaseSavepoint(ctx, "row_1"))

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, []string{"a"}, testutil.IDs(t, db, "genre"))
}

func TestOpenSource_MissingFile(t *testing.T) {
	_, err := database.OpenSource(t.Context(), filepath.Join(t.TempDir(), "missing.sqlite"), testutil.Logger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not readable")
}

func TestFlavorOr(t *testing.T) {
	db := testutil.NewDestinationDB(t)

	assert.Equal(t, sqlbuilder.SQLite, database.FlavorOr(sqlbuilder.Flavor(0), db))
	assert.Equal(t, sqlbuilder.PostgreSQL, database.FlavorOr(sqlbuilder.PostgreSQL, db))
}
