package content

import (
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newTestRepository(t *testing.T) (*Repository, database.DB) {
	t.Helper()
	db := testutil.NewDestinationDB(t)
	repo := NewRepository(db, testutil.Logger(), Options{
		Schema: testutil.DestinationSchema,
		Flavor: sqlbuilder.SQLite,
	})
	return repo, db
}

func newGenre(name string) models.Genre {
	now := models.At(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	return models.Genre{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
}

func TestWrite_InsertsThenSkips(t *testing.T) {
	repo, db := newTestRepository(t)
	genre := newGenre("Drama")

	res, err := repo.Write(t.Context(), genre)
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)

	res, err = repo.Write(t.Context(), genre)
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)

	assert.Equal(t, 1, testutil.Count(t, db, "genre"))
}

func TestWrite_SkipKeepsExistingRow(t *testing.T) {
	repo, db := newTestRepository(t)
	genre := newGenre("Drama")

	_, err := repo.Write(t.Context(), genre)
	require.NoError(t, err)

	changed := genre
	changed.Name = "Comedy"
	res, err := repo.Write(t.Context(), changed)
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)

	var name string
	require.NoError(t, db.GetContext(t.Context(), &name, "SELECT name FROM genre WHERE id = ?", genre.ID.String()))
	assert.Equal(t, "Drama", name)
}

func TestWrite_NullableColumns(t *testing.T) {
	repo, db := newTestRepository(t)
	now := models.At(time.Now().UTC())
	rating := 7.5
	fw := models.Filmwork{
		ID:        uuid.New(),
		Title:     "Heat",
		Rating:    &rating,
		Type:      models.DefaultFilmworkType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := repo.Write(t.Context(), fw)
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)

	var row struct {
		Description *string  `db:"description"`
		FilePath    *string  `db:"file_path"`
		Rating      *float64 `db:"rating"`
		Type        string   `db:"type"`
	}
	require.NoError(t, db.GetContext(t.Context(), &row,
		"SELECT description, file_path, rating, type FROM film_work WHERE id = ?", fw.ID.String()))
	assert.Nil(t, row.Description)
	assert.Nil(t, row.FilePath)
	require.NotNil(t, row.Rating)
	assert.InDelta(t, 7.5, *row.Rating, 0.0001)
	assert.Equal(t, "movie", row.Type)
}

func TestWrite_ConstraintViolationFails(t *testing.T) {
	repo, db := newTestRepository(t)
	filmworkID, genreID := uuid.New(), uuid.New()

	first := models.GenreFilmwork{ID: uuid.New(), FilmworkID: filmworkID, GenreID: genreID}
	res, err := repo.Write(t.Context(), first)
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)

	// same pair under a new id hits the unique constraint, not the id conflict
	duplicate := models.GenreFilmwork{ID: uuid.New(), FilmworkID: filmworkID, GenreID: genreID}
	_, err = repo.Write(t.Context(), duplicate)
	require.Error(t, err)
	require.True(t, errors.IsMigrationError(err))
	assert.Equal(t, errors.StageWrite, err.(*errors.MigrationError).Stage)
	assert.Equal(t, duplicate.ID.String(), err.(*errors.MigrationError).RowID)

	// the repository keeps working after a failed row
	res, err = repo.Write(t.Context(), newGenre("Drama"))
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)
	assert.Equal(t, 1, testutil.Count(t, db, "genre_film_work"))
}

type logRecorder struct {
	mu       sync.Mutex
	messages []ectologger.EctoLogMessage
}

func (l *logRecorder) record(msg ectologger.EctoLogMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *logRecorder) withMessage(message string) []ectologger.EctoLogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var found []ectologger.EctoLogMessage
	for _, msg := range l.messages {
		if msg.Message == message {
			found = append(found, msg)
		}
	}
	return found
}

func TestWrite_LogsEveryCommit(t *testing.T) {
	logs := &logRecorder{}
	db := testutil.NewDestinationDB(t)
	repo := NewRepository(db, ectologger.NewEctoLogger(logs.record), Options{Schema: testutil.DestinationSchema})
	genre := newGenre("Drama")

	_, err := repo.Write(t.Context(), genre)
	require.NoError(t, err)
	_, err = repo.Write(t.Context(), genre)
	require.NoError(t, err)

	commits := logs.withMessage("Commit success")
	require.Len(t, commits, 2)
	for i, result := range []string{"inserted", "skipped"} {
		assert.Equal(t, "info", commits[i].Level)
		assert.Equal(t, result, commits[i].Fields["result"])
		assert.Equal(t, "genre", commits[i].Fields["table"])
	}
}

func TestWrite_UsesConnectionFlavorByDefault(t *testing.T) {
	db := testutil.NewDestinationDB(t)
	repo := NewRepository(db, testutil.Logger(), Options{Schema: testutil.DestinationSchema})

	res, err := repo.Write(t.Context(), newGenre("Drama"))
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)
	assert.Equal(t, 1, testutil.Count(t, db, "genre"))
}

func TestWrite_VerbatimTimestamp(t *testing.T) {
	repo, db := newTestRepository(t)
	genre := newGenre("Drama")
	genre.UpdatedAt = models.Verbatim("16 June 2021 20:14")

	_, err := repo.Write(t.Context(), genre)
	require.NoError(t, err)

	var updated string
	require.NoError(t, db.GetContext(t.Context(), &updated, "SELECT updated_at FROM genre WHERE id = ?", genre.ID.String()))
	assert.Equal(t, "16 June 2021 20:14", updated)
}

func TestWriteChunk(t *testing.T) {
	repo, db := newTestRepository(t)
	existing := newGenre("Drama")
	_, err := repo.Write(t.Context(), existing)
	require.NoError(t, err)

	records := []models.Record{existing, newGenre("Comedy"), newGenre("Horror")}
	result, err := repo.WriteChunk(t.Context(), models.TableGenre, records)
	require.NoError(t, err)
	assert.Equal(t, ChunkResult{Inserted: 2, Skipped: 1}, result)
	assert.Equal(t, 3, testutil.Count(t, db, "genre"))
}

func TestWriteChunk_BadRowRollsBackAlone(t *testing.T) {
	repo, db := newTestRepository(t)
	filmworkID, genreID := uuid.New(), uuid.New()

	good := models.GenreFilmwork{ID: uuid.New(), FilmworkID: filmworkID, GenreID: genreID}
	duplicate := models.GenreFilmwork{ID: uuid.New(), FilmworkID: filmworkID, GenreID: genreID}
	other := models.GenreFilmwork{ID: uuid.New(), FilmworkID: filmworkID, GenreID: uuid.New()}

	result, err := repo.WriteChunk(t.Context(), models.TableGenreFilmwork, []models.Record{good, duplicate, other})
	require.NoError(t, err)
	assert.Equal(t, ChunkResult{Inserted: 2, Failed: 1}, result)

	assert.ElementsMatch(t, []string{good.ID.String(), other.ID.String()}, testutil.IDs(t, db, "genre_film_work"))
}

func TestWriteChunk_Empty(t *testing.T) {
	repo, _ := newTestRepository(t)

	result, err := repo.WriteChunk(t.Context(), models.TableGenre, nil)
	require.NoError(t, err)
	assert.Equal(t, ChunkResult{}, result)
}

func TestWriteResult_String(t *testing.T) {
	assert.Equal(t, "inserted", Inserted.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "unknown", WriteResult(0).String())
}
