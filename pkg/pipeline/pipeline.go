// Package pipeline drives a migration run: every chunk read from the source is normalized
// row by row and handed to the destination writer.
package pipeline

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/internal/repositories/content"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/extractor"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// WriteModeRow commits every row in its own transaction
	WriteModeRow = "row"
	// WriteModeChunk commits a chunk at once with a savepoint per row
	WriteModeChunk = "chunk"
)

type Source interface {
	Extract(ctx context.Context) iter.Seq[extractor.Chunk]
	Tables() []models.Table
}

type Config struct {
	// Workers bounds how many chunks of the same table are written concurrently
	Workers   int
	WriteMode string
}

type Pipeline struct {
	source     Source
	writer     content.ContentRepository
	normalizer *normalizers.Normalizer
	logger     ectologger.Logger
	cfg        Config

	mu   sync.RWMutex
	last *Stats
}

type Option func(*Pipeline)

// WithNormalizer replaces the default wall clock normalizer
func WithNormalizer(n *normalizers.Normalizer) Option {
	return func(p *Pipeline) {
		p.normalizer = n
	}
}

func New(source Source, writer content.ContentRepository, logger ectologger.Logger, cfg Config, opts ...Option) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.WriteMode == "" {
		cfg.WriteMode = WriteModeRow
	}

	p := &Pipeline{
		source:     source,
		writer:     writer,
		normalizer: normalizers.New(),
		logger:     logger,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LastStats returns a snapshot of the latest run, or nil before the first run starts
func (p *Pipeline) LastStats() *Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	return p.last.Snapshot()
}

// SaveAll migrates every source table in order. Row level problems are logged, counted and
// skipped; only cancellation of ctx ends the run with an error. Tables are processed one after
// another so parents are written before the link tables that reference them.
func (p *Pipeline) SaveAll(ctx context.Context) (*Stats, error) {
	ctx, span := tracing.StartSpan(ctx, "Pipeline.SaveAll")
	defer span.End()

	runID := uuid.NewString()
	ctx = appctx.SetRunID(ctx, runID)

	stats := newStats(runID, p.source.Tables())
	p.mu.Lock()
	p.last = stats
	p.mu.Unlock()

	logger := p.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx))
	logger.WithFields(map[string]any{
		"workers":    p.cfg.Workers,
		"write_mode": p.cfg.WriteMode,
	}).Info("Starting migration")

	run := &tableRun{table: -1}
	for chunk := range p.source.Extract(ctx) {
		if chunk.Table != run.table {
			p.finishTable(ctx, run, stats)
			run = p.startTable(ctx, chunk.Table)
		}

		stats.update(chunk.Table, func(ts *TableStats) {
			ts.Chunks++
			ts.Read += len(chunk.Rows)
		})

		if p.cfg.Workers == 1 {
			_ = p.processChunk(run.ctx, chunk, stats)
		} else {
			// Go blocks while the pool is full so reading never runs far ahead of writing
			current := run
			current.group.Go(func() error {
				return p.processChunk(current.gctx, chunk, stats)
			})
		}

		if ctx.Err() != nil {
			break
		}
	}
	p.finishTable(ctx, run, stats)

	stats.mu.Lock()
	stats.FinishedAt = time.Now().UTC()
	stats.mu.Unlock()

	total := stats.Totals()
	fields := map[string]any{
		"read":     total.Read,
		"inserted": total.Inserted,
		"skipped":  total.Skipped,
		"rejected": total.Rejected,
		"failed":   total.Failed,
	}

	if err := ctx.Err(); err != nil {
		logger.WithError(err).WithFields(fields).Warn("Migration cancelled")
		return stats, err
	}

	logger.WithFields(fields).Info("Migration finished")
	return stats, nil
}

type tableRun struct {
	table models.Table
	ctx   context.Context
	gctx  context.Context
	group *errgroup.Group
	start time.Time
}

func (p *Pipeline) startTable(ctx context.Context, table models.Table) *tableRun {
	ctx = appctx.SetTable(ctx, table.String())
	p.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)).Info("Migrating table")

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Workers)

	return &tableRun{
		table: table,
		ctx:   ctx,
		gctx:  gctx,
		group: group,
		start: time.Now(),
	}
}

// finishTable waits for the table's workers and records its duration
func (p *Pipeline) finishTable(ctx context.Context, run *tableRun, stats *Stats) {
	if run == nil || run.group == nil {
		return
	}

	if err := run.group.Wait(); err != nil && ctx.Err() == nil {
		p.logger.WithContext(run.ctx).WithError(err).WithFields(appctx.LogFields(run.ctx)).Error("Table workers stopped")
	}

	elapsed := time.Since(run.start)
	metrics.TableDuration.WithLabelValues(run.table.String()).Observe(elapsed.Seconds())

	var snapshot TableStats
	stats.update(run.table, func(ts *TableStats) {
		ts.Duration = elapsed
		snapshot = *ts
	})

	p.logger.WithContext(run.ctx).WithFields(appctx.LogFields(run.ctx)).WithFields(map[string]any{
		"read":     snapshot.Read,
		"inserted": snapshot.Inserted,
		"skipped":  snapshot.Skipped,
		"rejected": snapshot.Rejected,
		"failed":   snapshot.Failed,
		"duration": elapsed.String(),
	}).Info("Table migrated")
}

// processChunk normalizes and writes one chunk. It only returns an error when ctx is done.
func (p *Pipeline) processChunk(ctx context.Context, chunk extractor.Chunk, stats *Stats) error {
	ctx, span := tracing.StartSpan(ctx, "Pipeline.processChunk",
		tracing.AttrTable.String(chunk.Table.String()),
		tracing.AttrChunk.Int(chunk.Index),
		tracing.AttrRows.Int(len(chunk.Rows)),
	)
	defer span.End()

	table := chunk.Table.String()
	logger := p.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)).WithFields(map[string]any{
		"chunk": chunk.Index,
	})

	records := make([]models.Record, 0, len(chunk.Rows))
	for _, raw := range chunk.Rows {
		record, err := p.normalizer.Normalize(chunk.Table, raw)
		if err != nil {
			logger.WithError(err).WithFields(errorFields(err)).Warn("Rejected source row")
			metrics.RowsWrittenTotal.WithLabelValues(table, metrics.StatusRejected).Inc()
			stats.update(chunk.Table, func(ts *TableStats) { ts.Rejected++ })
			continue
		}
		records = append(records, record)
	}

	if p.cfg.WriteMode == WriteModeChunk {
		result, err := p.writer.WriteChunk(ctx, chunk.Table, records)
		if err != nil {
			logger.WithError(err).Error("Failed to write chunk")
		}
		metrics.RowsWrittenTotal.WithLabelValues(table, metrics.StatusInserted).Add(float64(result.Inserted))
		metrics.RowsWrittenTotal.WithLabelValues(table, metrics.StatusSkipped).Add(float64(result.Skipped))
		metrics.RowsWrittenTotal.WithLabelValues(table, metrics.StatusFailed).Add(float64(result.Failed))
		stats.update(chunk.Table, func(ts *TableStats) {
			ts.Inserted += result.Inserted
			ts.Skipped += result.Skipped
			ts.Failed += result.Failed
		})
		return ctx.Err()
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := p.writer.Write(ctx, record)
		if err != nil {
			logger.WithError(err).WithFields(errorFields(err)).Error("Failed to write row")
			metrics.RowsWrittenTotal.WithLabelValues(table, metrics.StatusFailed).Inc()
			stats.update(chunk.Table, func(ts *TableStats) { ts.Failed++ })
			continue
		}

		switch res {
		case content.Inserted:
			metrics.RowsWrittenTotal.WithLabelValues(table, metrics.StatusInserted).Inc()
			stats.update(chunk.Table, func(ts *TableStats) { ts.Inserted++ })
		case content.Skipped:
			metrics.RowsWrittenTotal.WithLabelValues(table, metrics.StatusSkipped).Inc()
			stats.update(chunk.Table, func(ts *TableStats) { ts.Skipped++ })
		}
	}

	return ctx.Err()
}

func errorFields(err error) map[string]any {
	if migrationErr, ok := err.(*errors.MigrationError); ok {
		return migrationErr.Fields()
	}
	return map[string]any{}
}
