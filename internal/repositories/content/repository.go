package content

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultSchema is the destination schema holding the content tables
const DefaultSchema = "content"

// WriteResult is the outcome of a successful insert
type WriteResult int

const (
	// Inserted means the row did not exist and was written
	Inserted WriteResult = iota + 1
	// Skipped means a row with the same id already existed
	Skipped
)

func (r WriteResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ChunkResult counts the outcome of a chunk written in one transaction
type ChunkResult struct {
	Inserted int
	Skipped  int
	Failed   int
}

type ContentRepository interface {
	Write(ctx context.Context, record models.Record) (WriteResult, error)
	WriteChunk(ctx context.Context, table models.Table, records []models.Record) (ChunkResult, error)
}

type Options struct {
	// Schema qualifies every table name. Empty means the connection's search path.
	Schema string
	// Flavor selects the placeholder and quoting style of generated SQL. The zero value uses
	// the dialect of the connection.
	Flavor sqlbuilder.Flavor
}

// DefaultOptions targets the content schema on PostgreSQL
func DefaultOptions() Options {
	return Options{
		Schema: DefaultSchema,
		Flavor: sqlbuilder.PostgreSQL,
	}
}

type Repository struct {
	db      database.DB
	logger  ectologger.Logger
	schema  string
	structs [models.TableCount]*database.Struct
}

// NewRepository creates a new content repository
func NewRepository(db database.DB, logger ectologger.Logger, opts Options) *Repository {
	return &Repository{
		db:      db,
		logger:  logger,
		schema:  opts.Schema,
		structs: newStructs(database.FlavorOr(opts.Flavor, db)),
	}
}

// Write inserts record in its own transaction. A record whose id already exists is left
// untouched and reported as Skipped. When ctx carries a transaction (see WriteChunk) the
// insert joins it and nothing is committed here.
func (r *Repository) Write(ctx context.Context, record models.Record) (WriteResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ContentRepository.Write")
	defer span.End()

	table := record.Table()
	if !table.Valid() {
		return 0, errors.NewMigrationErrorf("unknown table %s", table).
			AddRow(record.RecordID().String()).
			AddStage(errors.StageWrite)
	}

	fields := map[string]any{
		"table": table.String(),
		"id":    record.RecordID(),
	}

	ib := r.structs[table].InsertInto(database.QualifiedTable(r.schema, table.String()), record)
	ib.OnConflictDoNothing("id")
	query, args := ib.Build()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, r.writeError(err, record)
	}
	defer tx.Rollback(ctx)

	r.logger.WithContext(ctx).WithFields(fields).Debug("Inserting row")

	start := time.Now()
	res, err := tx.ExecContext(ctx, query, args...)
	metrics.WriteDuration.WithLabelValues(table.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("Failed to insert row")
		return 0, r.writeError(err, record)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("Failed to read affected rows")
		return 0, r.writeError(err, record)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, r.writeError(err, record)
	}

	result := Inserted
	if affected == 0 {
		result = Skipped
	}

	if !tx.IsBorrowed() {
		fields["result"] = result.String()
		r.logger.WithContext(ctx).WithFields(fields).Info("Commit success")
	}
	return result, nil
}

// WriteChunk inserts records of table in a single transaction. Each row runs inside its own
// savepoint so a failing row is rolled back alone and the rest of the chunk still commits.
// An error is returned only when the chunk transaction itself cannot be opened or committed,
// in which case every row of the chunk counts as failed.
func (r *Repository) WriteChunk(ctx context.Context, table models.Table, records []models.Record) (ChunkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ContentRepository.WriteChunk",
		tracing.AttrTable.String(table.String()),
		tracing.AttrRows.Int(len(records)),
	)
	defer span.End()

	result := ChunkResult{}
	if len(records) == 0 {
		return result, nil
	}

	logger := r.logger.WithContext(ctx).WithFields(map[string]any{
		"table": table.String(),
		"rows":  len(records),
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return ChunkResult{Failed: len(records)}, errors.WrapMigrationError(err).
			AddTable(table.String()).
			AddStage(errors.StageWrite)
	}
	defer tx.Rollback(ctx)

	rowCtx := database.WithTx(ctx, tx)
	for i, record := range records {
		savepoint := fmt.Sprintf("fern_row_%d", i)
		if err := tx.Savepoint(ctx, savepoint); err != nil {
			logger.WithError(err).Error("Failed to create savepoint")
			return ChunkResult{Failed: len(records)}, errors.WrapMigrationError(err).
				AddTable(table.String()).
				AddStage(errors.StageWrite)
		}

		res, err := r.Write(rowCtx, record)
		if err != nil {
			result.Failed++
			if rbErr := tx.RollbackToSavepoint(ctx, savepoint); rbErr != nil {
				logger.WithError(rbErr).Error("Failed to roll back savepoint")
				return ChunkResult{Failed: len(records)}, errors.WrapMigrationError(rbErr).
					AddTable(table.String()).
					AddStage(errors.StageWrite)
			}
			continue
		}

		if err := tx.ReleaseSavepoint(ctx, savepoint); err != nil {
			logger.WithError(err).Error("Failed to release savepoint")
			return ChunkResult{Failed: len(records)}, errors.WrapMigrationError(err).
				AddTable(table.String()).
				AddStage(errors.StageWrite)
		}

		switch res {
		case Inserted:
			result.Inserted++
		case Skipped:
			result.Skipped++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ChunkResult{Failed: len(records)}, errors.WrapMigrationError(err).
			AddTable(table.String()).
			AddStage(errors.StageWrite)
	}

	logger.WithFields(map[string]any{
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	}).Info("Commit success")

	return result, nil
}

func (r *Repository) writeError(err error, record models.Record) *errors.MigrationError {
	return errors.WrapMigrationError(err).
		AddTable(record.Table().String()).
		AddRow(record.RecordID().String()).
		AddStage(errors.StageWrite)
}
