package checker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newChecker(t *testing.T, source, destination database.DB, chunkSize int) *Checker {
	t.Helper()
	c, err := New(source, destination, testutil.Logger(), Config{
		ChunkSize: chunkSize,
		Schema:    testutil.DestinationSchema,
		Flavor:    sqlbuilder.SQLite,
	})
	require.NoError(t, err)
	return c
}

func seedGenres(t *testing.T, source, destination database.DB, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := range n {
		id := uuid.NewString()
		ids = append(ids, id)
		testutil.Exec(t, source, `INSERT INTO genre (id, name) VALUES (?, ?)`, id, fmt.Sprintf("Genre %d", i))
		if destination != nil {
			testutil.Exec(t, destination, `INSERT INTO genre (id, name) VALUES (?, ?)`, id, fmt.Sprintf("Genre %d", i))
		}
	}
	return ids
}

func TestNew_RejectsNonPositiveChunkSize(t *testing.T) {
	_, err := New(nil, nil, testutil.Logger(), Config{ChunkSize: 0})
	assert.Error(t, err)
}

func TestNew_DefaultsToDestinationFlavor(t *testing.T) {
	source, destination := testutil.NewSourceDB(t), testutil.NewDestinationDB(t)
	seedGenres(t, source, destination, 3)

	c, err := New(source, destination, testutil.Logger(), Config{
		ChunkSize: 2,
		Schema:    testutil.DestinationSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, sqlbuilder.SQLite, c.cfg.Flavor)

	_, err = c.Check(t.Context())
	require.NoError(t, err)
}

func TestCheck_Passes(t *testing.T) {
	source, destination := testutil.NewSourceDB(t), testutil.NewDestinationDB(t)
	seedGenres(t, source, destination, 5)

	report, err := newChecker(t, source, destination, 2).Check(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Tables, len(models.AllTables()))

	genre := report.Tables[models.TableGenre]
	assert.Equal(t, "genre", genre.Table)
	assert.Equal(t, 5, genre.Source)
	assert.Equal(t, 5, genre.Destination)
	assert.Equal(t, 3, genre.Chunks)

	assert.Equal(t, TableReport{Table: "person"}, report.Tables[models.TablePerson])
}

func TestCheck_CaseInsensitiveIDs(t *testing.T) {
	source, destination := testutil.NewSourceDB(t), testutil.NewDestinationDB(t)
	id := uuid.NewString()
	testutil.Exec(t, source, `INSERT INTO genre (id, name) VALUES (?, ?)`, strings.ToUpper(id), "Drama")
	testutil.Exec(t, destination, `INSERT INTO genre (id, name) VALUES (?, ?)`, id, "Drama")

	_, err := newChecker(t, source, destination, 10).Check(t.Context())
	assert.NoError(t, err)
}

func TestCheck_CountDivergence(t *testing.T) {
	source, destination := testutil.NewSourceDB(t), testutil.NewDestinationDB(t)
	seedGenres(t, source, destination, 2)
	testutil.Exec(t, source, `INSERT INTO film_work (id, title) VALUES (?, ?)`, uuid.NewString(), "Heat")

	report, err := newChecker(t, source, destination, 10).Check(t.Context())
	require.Error(t, err)

	divergence, ok := AsDivergenceError(err)
	require.True(t, ok)
	assert.Equal(t, "film_work", divergence.Table)
	assert.Equal(t, StageCount, divergence.Stage)
	assert.Equal(t, 1, divergence.Source)
	assert.Equal(t, 0, divergence.Destination)
	assert.Contains(t, err.Error(), "film_work")

	// tables checked before the divergence are still reported
	require.Len(t, report.Tables, 2)
	assert.Equal(t, "genre", report.Tables[1].Table)
}

func TestCheck_ChunkDivergence(t *testing.T) {
	source, destination := testutil.NewSourceDB(t), testutil.NewDestinationDB(t)
	ids := seedGenres(t, source, nil, 3)
	testutil.Exec(t, destination, `INSERT INTO genre (id, name) VALUES (?, ?)`, ids[0], "Genre 0")
	testutil.Exec(t, destination, `INSERT INTO genre (id, name) VALUES (?, ?)`, ids[1], "Genre 1")
	// same count, different ids
	testutil.Exec(t, destination, `INSERT INTO genre (id, name) VALUES (?, ?)`, uuid.NewString(), "Stray")

	_, err := newChecker(t, source, destination, 2).Check(t.Context())
	require.Error(t, err)

	divergence, ok := AsDivergenceError(err)
	require.True(t, ok)
	assert.Equal(t, "genre", divergence.Table)
	assert.Equal(t, StageChunk, divergence.Stage)
	assert.Equal(t, 1, divergence.Source)
	assert.Equal(t, 0, divergence.Destination)
	assert.Equal(t, []string{ids[2]}, divergence.Missing)
}

func TestCheck_DetectsTruncation(t *testing.T) {
	source, destination := testutil.NewSourceDB(t), testutil.NewDestinationDB(t)
	ids := seedGenres(t, source, destination, 4)
	testutil.Exec(t, destination, `DELETE FROM genre WHERE id = ?`, ids[3])

	_, err := newChecker(t, source, destination, 2).Check(t.Context())
	divergence, ok := AsDivergenceError(err)
	require.True(t, ok)
	assert.Equal(t, "genre", divergence.Table)
	assert.Equal(t, 4, divergence.Source)
	assert.Equal(t, 3, divergence.Destination)
}

func TestCheck_Tables(t *testing.T) {
	source, destination := testutil.NewSourceDB(t), testutil.NewDestinationDB(t)
	testutil.Exec(t, source, `INSERT INTO film_work (id, title) VALUES (?, ?)`, uuid.NewString(), "Heat")

	c, err := New(source, destination, testutil.Logger(), Config{
		ChunkSize: 10,
		Schema:    testutil.DestinationSchema,
		Flavor:    sqlbuilder.SQLite,
		Tables:    []models.Table{models.TablePerson, models.TableGenre},
	})
	require.NoError(t, err)

	report, err := c.Check(t.Context())
	require.NoError(t, err)
	assert.Len(t, report.Tables, 2)
}
