// Package extractor reads the legacy tables in fixed-size chunks
package extractor

import (
	"context"
	"fmt"
	"iter"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// RawRow is a source row keyed by column name, holding whatever the driver returned
type RawRow map[string]any

// Chunk is a bounded batch of rows read from one table
type Chunk struct {
	Table models.Table
	Index int
	Rows  []RawRow
}

// Extractor streams source tables chunk by chunk
type Extractor struct {
	db        database.DB
	chunkSize int
	tables    []models.Table
	logger    ectologger.Logger
}

// New creates an Extractor over every table. chunkSize must be positive.
func New(db database.DB, chunkSize int, logger ectologger.Logger) (*Extractor, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", chunkSize)
	}

	return &Extractor{
		db:        db,
		chunkSize: chunkSize,
		tables:    models.AllTables(),
		logger:    logger,
	}, nil
}

// WithTables restricts extraction to tables. Migration order is kept regardless of the order
// given.
func (e *Extractor) WithTables(tables ...models.Table) *Extractor {
	if len(tables) == 0 {
		return e
	}

	selected := make(map[models.Table]bool, len(tables))
	for _, t := range tables {
		selected[t] = true
	}

	filtered := make([]models.Table, 0, len(tables))
	for _, t := range models.AllTables() {
		if selected[t] {
			filtered = append(filtered, t)
		}
	}

	e.tables = filtered
	return e
}

// Tables returns the tables the extractor will read, in order
func (e *Extractor) Tables() []models.Table {
	return e.tables
}

// ChunkSize returns the configured number of rows per chunk
func (e *Extractor) ChunkSize() int {
	return e.chunkSize
}

// Extract returns a lazy sequence of chunks covering every selected table. Every call starts a
// fresh scan. A read failure is logged and ends that table early; the remaining tables are
// still read, so truncation is only visible to a later consistency check.
func (e *Extractor) Extract(ctx context.Context) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for _, table := range e.tables {
			if ctx.Err() != nil {
				e.logger.WithContext(ctx).WithError(ctx.Err()).Warn("Extraction cancelled")
				return
			}
			if !e.extractTable(ctx, table, yield) {
				return
			}
		}
	}
}

// extractTable yields the chunks of one table. It returns false when the consumer stopped.
func (e *Extractor) extractTable(ctx context.Context, table models.Table, yield func(Chunk) bool) bool {
	ctx, span := tracing.StartSpan(ctx, "Extractor.extractTable", tracing.AttrTable.String(table.String()))
	defer span.End()

	logger := e.logger.WithContext(ctx).WithFields(map[string]any{
		"table":      table.String(),
		"chunk_size": e.chunkSize,
	})

	sb := e.db.Flavor().NewSelectBuilder()
	sb.Select("*").From(table.String())
	query, args := sb.Build()

	rows, err := e.db.QueryxContext(ctx, query, args...)
	if err != nil {
		logger.WithError(err).Error("Failed to query source table")
		metrics.ExtractErrorsTotal.WithLabelValues(table.String()).Inc()
		return true
	}
	defer rows.Close()

	logger.Info("Reading source table")

	index := 0
	batch := make([]RawRow, 0, e.chunkSize)
	for rows.Next() {
		row := RawRow{}
		if err := rows.MapScan(row); err != nil {
			logger.WithError(err).Error("Failed to scan source row")
			metrics.ExtractErrorsTotal.WithLabelValues(table.String()).Inc()
			return true
		}
		batch = append(batch, row)

		if len(batch) == e.chunkSize {
			if !e.emit(table, index, batch, yield) {
				return false
			}
			index++
			batch = make([]RawRow, 0, e.chunkSize)
		}
	}

	if err := rows.Err(); err != nil {
		logger.WithError(err).Error("Failed to read source table")
		metrics.ExtractErrorsTotal.WithLabelValues(table.String()).Inc()
		return true
	}

	if len(batch) > 0 {
		if !e.emit(table, index, batch, yield) {
			return false
		}
		index++
	}

	logger.WithFields(map[string]any{"chunks": index}).Debug("Finished reading source table")
	return true
}

func (e *Extractor) emit(table models.Table, index int, rows []RawRow, yield func(Chunk) bool) bool {
	metrics.ChunksReadTotal.WithLabelValues(table.String()).Inc()
	metrics.RowsReadTotal.WithLabelValues(table.String()).Add(float64(len(rows)))
	return yield(Chunk{Table: table, Index: index, Rows: rows})
}
