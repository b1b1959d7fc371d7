// Package checker verifies that a finished migration left the destination consistent with the
// source.
package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Divergence stages
const (
	StageCount = "count"
	StageChunk = "chunk"
)

// DivergenceError reports the first table found to differ between source and destination
type DivergenceError struct {
	Table       string
	Stage       string
	Source      int
	Destination int
	// Missing holds the source ids of the chunk that were not found in the destination
	Missing []string
}

func (e *DivergenceError) Error() string {
	if e.Stage == StageChunk {
		return fmt.Sprintf("table %s diverged: chunk has %d source rows but %d destination rows, missing ids [%s]",
			e.Table, e.Source, e.Destination, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("table %s diverged: source has %d rows, destination has %d", e.Table, e.Source, e.Destination)
}

// AsDivergenceError returns the *DivergenceError in err's chain, if any
func AsDivergenceError(err error) (*DivergenceError, bool) {
	var divergence *DivergenceError
	if errors.As(err, &divergence) {
		return divergence, true
	}
	return nil, false
}

// TableReport holds the verified counts of one table
type TableReport struct {
	Table       string `json:"table"`
	Source      int    `json:"source"`
	Destination int    `json:"destination"`
	Chunks      int    `json:"chunks"`
}

// Report is the result of a passing check
type Report struct {
	Tables []TableReport `json:"tables"`
}

type Config struct {
	ChunkSize int
	// Schema and Flavor describe the destination the same way the writer does. Flavor
	// defaults to the destination driver's dialect.
	Schema string
	Flavor sqlbuilder.Flavor
	Tables []models.Table
}

type Checker struct {
	source      database.DB
	destination database.DB
	logger      ectologger.Logger
	cfg         Config
}

func New(source, destination database.DB, logger ectologger.Logger, cfg Config) (*Checker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", cfg.ChunkSize)
	}
	cfg.Flavor = database.FlavorOr(cfg.Flavor, destination)
	if len(cfg.Tables) == 0 {
		cfg.Tables = models.AllTables()
	}

	return &Checker{
		source:      source,
		destination: destination,
		logger:      logger,
		cfg:         cfg,
	}, nil
}

// Check compares every table in migration order and stops at the first divergence, returned as
// a *DivergenceError. Both databases are only read.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "Checker.Check")
	defer span.End()

	report := &Report{Tables: make([]TableReport, 0, len(c.cfg.Tables))}
	for _, table := range c.cfg.Tables {
		tr, err := c.checkTable(ctx, table)
		if err != nil {
			result := "error"
			if _, ok := AsDivergenceError(err); ok {
				result = "diverged"
			}
			metrics.VerificationsTotal.WithLabelValues(table.String(), result).Inc()
			return report, err
		}

		metrics.VerificationsTotal.WithLabelValues(table.String(), "ok").Inc()
		report.Tables = append(report.Tables, tr)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"tables": len(report.Tables),
	}).Info("Consistency check passed")

	return report, nil
}

func (c *Checker) checkTable(ctx context.Context, table models.Table) (TableReport, error) {
	ctx, span := tracing.StartSpan(ctx, "Checker.checkTable", tracing.AttrTable.String(table.String()))
	defer span.End()

	logger := c.logger.WithContext(ctx).WithFields(map[string]any{
		"table": table.String(),
	})
	tr := TableReport{Table: table.String()}

	sourceCount, err := count(ctx, c.source, c.source.Flavor(), table.String())
	if err != nil {
		logger.WithError(err).Error("Failed to count source rows")
		return tr, errors.Wrapf(err, "failed to count source table %s", table)
	}

	destTable := database.QualifiedTable(c.cfg.Schema, table.String())
	destCount, err := count(ctx, c.destination, c.cfg.Flavor, destTable)
	if err != nil {
		logger.WithError(err).Error("Failed to count destination rows")
		return tr, errors.Wrapf(err, "failed to count destination table %s", destTable)
	}

	tr.Source, tr.Destination = sourceCount, destCount
	if sourceCount != destCount {
		logger.WithFields(map[string]any{
			"source":      sourceCount,
			"destination": destCount,
		}).Error("Row counts differ")
		return tr, &DivergenceError{
			Table:       table.String(),
			Stage:       StageCount,
			Source:      sourceCount,
			Destination: destCount,
		}
	}

	sb := c.source.Flavor().NewSelectBuilder()
	sb.Select("id").From(table.String())
	query, args := sb.Build()

	rows, err := c.source.QueryxContext(ctx, query, args...)
	if err != nil {
		logger.WithError(err).Error("Failed to read source ids")
		return tr, errors.Wrapf(err, "failed to read source ids of %s", table)
	}
	defer rows.Close()

	batch := make([]string, 0, c.cfg.ChunkSize)
	for rows.Next() {
		var id *string
		if err := rows.Scan(&id); err != nil {
			return tr, errors.Wrapf(err, "failed to scan source id of %s", table)
		}
		if id == nil {
			batch = append(batch, "")
		} else {
			batch = append(batch, *id)
		}

		if len(batch) == c.cfg.ChunkSize {
			if err := c.checkChunk(ctx, table, destTable, batch); err != nil {
				return tr, err
			}
			tr.Chunks++
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return tr, errors.Wrapf(err, "failed to read source ids of %s", table)
	}

	if len(batch) > 0 {
		if err := c.checkChunk(ctx, table, destTable, batch); err != nil {
			return tr, err
		}
		tr.Chunks++
	}

	logger.WithFields(map[string]any{
		"rows":   sourceCount,
		"chunks": tr.Chunks,
	}).Debug("Table consistent")

	return tr, nil
}

// checkChunk looks up the destination rows matching one chunk of source ids
func (c *Checker) checkChunk(ctx context.Context, table models.Table, destTable string, sourceIDs []string) error {
	lookup := make([]any, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if parsed, err := uuid.Parse(id); err == nil {
			lookup = append(lookup, parsed.String())
		}
	}

	found := map[string]bool{}
	if len(lookup) > 0 {
		sb := c.cfg.Flavor.NewSelectBuilder()
		sb.Select("id").From(destTable).Where(sb.In("id", lookup...))
		query, args := sb.Build()

		var destIDs []string
		if err := c.destination.SelectContext(ctx, &destIDs, query, args...); err != nil {
			return errors.Wrapf(err, "failed to read destination ids of %s", destTable)
		}
		for _, id := range destIDs {
			found[normalizeID(id)] = true
		}
	}

	if len(found) == len(sourceIDs) {
		return nil
	}

	missing := []string{}
	for _, id := range sourceIDs {
		if !found[normalizeID(id)] {
			missing = append(missing, id)
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"table":   table.String(),
		"missing": missing,
	}).Error("Chunk diverged")

	return &DivergenceError{
		Table:       table.String(),
		Stage:       StageChunk,
		Source:      len(sourceIDs),
		Destination: len(found),
		Missing:     missing,
	}
}

func normalizeID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

func count(ctx context.Context, db database.DB, flavor sqlbuilder.Flavor, table string) (int, error) {
	sb := flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(table)
	query, args := sb.Build()

	var n int
	if err := db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, err
	}
	return n, nil
}
