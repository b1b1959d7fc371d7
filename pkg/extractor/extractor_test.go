package extractor

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

func seedPeople(t *testing.T, db database.DB, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := range n {
		id := uuid.NewString()
		ids = append(ids, id)
		testutil.Exec(t, db, `INSERT INTO person (id, full_name) VALUES (?, ?)`, id, fmt.Sprintf("Person %d", i))
	}
	return ids
}

func collect(t *testing.T, e *Extractor) []Chunk {
	t.Helper()
	chunks := []Chunk{}
	for chunk := range e.Extract(t.Context()) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestNew_RejectsNonPositiveChunkSize(t *testing.T) {
	db := testutil.NewSourceDB(t)

	_, err := New(db, 0, testutil.Logger())
	assert.Error(t, err)

	_, err = New(db, -3, testutil.Logger())
	assert.Error(t, err)
}

func TestExtract_Chunking(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		chunkSize int
		expected  []int
	}{
		{name: "empty table", rows: 0, chunkSize: 3, expected: []int{}},
		{name: "exact multiple", rows: 6, chunkSize: 3, expected: []int{3, 3}},
		{name: "short last chunk", rows: 7, chunkSize: 3, expected: []int{3, 3, 1}},
		{name: "chunk size one", rows: 3, chunkSize: 1, expected: []int{1, 1, 1}},
		{name: "chunk larger than table", rows: 2, chunkSize: 100, expected: []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewSourceDB(t)
			seeded := seedPeople(t, db, tt.rows)

			e, err := New(db, tt.chunkSize, testutil.Logger())
			require.NoError(t, err)

			sizes := []int{}
			total := 0
			ids := []string{}
			for i, chunk := range collect(t, e.WithTables(models.TablePerson)) {
				assert.Equal(t, models.TablePerson, chunk.Table)
				assert.Equal(t, i, chunk.Index)
				sizes = append(sizes, len(chunk.Rows))
				total += len(chunk.Rows)
				for _, row := range chunk.Rows {
					id, ok := row["id"].(string)
					require.True(t, ok, "id is %T", row["id"])
					ids = append(ids, id)
				}
			}

			assert.Equal(t, tt.expected, sizes)
			assert.Equal(t, tt.rows, total)
			// every row exactly once
			assert.ElementsMatch(t, seeded, ids)
		})
	}
}

func TestExtract_TableOrder(t *testing.T) {
	db := testutil.NewSourceDB(t)
	seedPeople(t, db, 1)
	testutil.Exec(t, db, `INSERT INTO genre (id, name) VALUES (?, ?)`, uuid.NewString(), "Drama")
	testutil.Exec(t, db, `INSERT INTO person_film_work (id, role) VALUES (?, ?)`, uuid.NewString(), "actor")
	testutil.Exec(t, db, `INSERT INTO film_work (id, title) VALUES (?, ?)`, uuid.NewString(), "Heat")

	e, err := New(db, 10, testutil.Logger())
	require.NoError(t, err)

	tables := []models.Table{}
	for _, chunk := range collect(t, e) {
		tables = append(tables, chunk.Table)
	}

	assert.Equal(t, []models.Table{
		models.TablePerson,
		models.TableGenre,
		models.TableFilmwork,
		models.TablePersonFilmwork,
	}, tables)
}

func TestExtract_RawRowColumns(t *testing.T) {
	db := testutil.NewSourceDB(t)
	id := uuid.NewString()
	testutil.Exec(t, db, `INSERT INTO genre (id, name, description) VALUES (?, ?, NULL)`, id, "Drama")

	e, err := New(db, 10, testutil.Logger())
	require.NoError(t, err)

	chunks := collect(t, e.WithTables(models.TableGenre))
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].Rows, 1)

	row := chunks[0].Rows[0]
	assert.Equal(t, id, row["id"])
	assert.Equal(t, "Drama", row["name"])
	assert.Contains(t, row, "description")
	assert.Nil(t, row["description"])
}

func TestExtract_ReadFailureMovesToNextTable(t *testing.T) {
	db := testutil.NewSourceDB(t)
	seedPeople(t, db, 2)
	testutil.Exec(t, db, `DROP TABLE genre`)
	testutil.Exec(t, db, `INSERT INTO film_work (id, title) VALUES (?, ?)`, uuid.NewString(), "Heat")

	e, err := New(db, 10, testutil.Logger())
	require.NoError(t, err)

	counts := map[models.Table]int{}
	for _, chunk := range collect(t, e) {
		counts[chunk.Table] += len(chunk.Rows)
	}

	assert.Equal(t, map[models.Table]int{
		models.TablePerson:   2,
		models.TableFilmwork: 1,
	}, counts)
}

func TestExtract_FailureMidTableKeepsEarlierChunks(t *testing.T) {
	db := testutil.NewSourceDB(t)
	testutil.Exec(t, db, `DROP TABLE person`)
	testutil.Exec(t, db, `CREATE TABLE person_rows (n INTEGER, id TEXT, full_name TEXT)`)
	// the fourth row fails while stepping, after earlier rows were already returned
	testutil.Exec(t, db, `CREATE VIEW person AS
		SELECT id, full_name, json(CASE WHEN n = 4 THEN 'not json' ELSE n END) AS n FROM person_rows`)

	ids := make([]string, 0, 5)
	for n := 1; n <= 5; n++ {
		id := uuid.NewString()
		ids = append(ids, id)
		testutil.Exec(t, db, `INSERT INTO person_rows (n, id, full_name) VALUES (?, ?, ?)`, n, id, fmt.Sprintf("Person %d", n))
	}
	testutil.Exec(t, db, `INSERT INTO genre (id, name) VALUES (?, ?)`, uuid.NewString(), "Drama")

	e, err := New(db, 2, testutil.Logger())
	require.NoError(t, err)

	read := map[models.Table][]string{}
	for _, chunk := range collect(t, e) {
		for _, row := range chunk.Rows {
			read[chunk.Table] = append(read[chunk.Table], row["id"].(string))
		}
	}

	// only the first full chunk of person made it out; the partial chunk is dropped
	assert.Equal(t, ids[:2], read[models.TablePerson])
	assert.Len(t, read[models.TableGenre], 1)
}

func TestExtract_ConsumerStop(t *testing.T) {
	db := testutil.NewSourceDB(t)
	seedPeople(t, db, 5)
	testutil.Exec(t, db, `INSERT INTO genre (id, name) VALUES (?, ?)`, uuid.NewString(), "Drama")

	e, err := New(db, 2, testutil.Logger())
	require.NoError(t, err)

	seen := 0
	for range e.Extract(t.Context()) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	// a new call starts from scratch
	assert.Len(t, collect(t, e), 4)
}

func TestExtract_Cancelled(t *testing.T) {
	db := testutil.NewSourceDB(t)
	seedPeople(t, db, 3)

	e, err := New(db, 1, testutil.Logger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	seen := 0
	for range e.Extract(ctx) {
		seen++
	}
	assert.Zero(t, seen)
}

func TestWithTables_KeepsMigrationOrder(t *testing.T) {
	db := testutil.NewSourceDB(t)
	e, err := New(db, 1, testutil.Logger())
	require.NoError(t, err)

	e.WithTables(models.TablePersonFilmwork, models.TablePerson)
	assert.Equal(t, []models.Table{models.TablePerson, models.TablePersonFilmwork}, e.Tables())
	assert.Equal(t, 1, e.ChunkSize())
}
