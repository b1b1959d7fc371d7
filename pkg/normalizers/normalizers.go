// Package normalizers turns raw source rows into typed records, filling the defaults the
// destination schema expects.
package normalizers

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Rule builds the record for one table from a raw row. now is called at most once per row.
type Rule func(raw map[string]any, now func() time.Time) (models.Record, error)

var rules = [models.TableCount]Rule{
	models.TablePerson:         rule(person),
	models.TableGenre:          rule(genre),
	models.TableFilmwork:       rule(filmwork),
	models.TableGenreFilmwork:  rule(genreFilmwork),
	models.TablePersonFilmwork: rule(personFilmwork),
}

// For returns the rule registered for table
func For(table models.Table) (Rule, bool) {
	if !table.Valid() || rules[table] == nil {
		return nil, false
	}
	return rules[table], true
}

type Normalizer struct {
	now func() time.Time
}

type Option func(*Normalizer)

// WithClock overrides the time source used for missing timestamps
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize converts raw using the wall clock for missing timestamps
func Normalize(table models.Table, raw map[string]any) (models.Record, error) {
	return defaultNormalizer.Normalize(table, raw)
}

// Normalize converts raw into the record type of table. Rows that cannot be converted are
// rejected with a *errors.MigrationError at the normalize stage.
func (n *Normalizer) Normalize(table models.Table, raw map[string]any) (models.Record, error) {
	rowID, _ := text(raw["id"])

	r, ok := For(table)
	if !ok {
		return nil, errors.NewMigrationErrorf("no normalizer registered for %s", table).
			AddTable(table.String()).
			AddRow(rowID).
			AddStage(errors.StageNormalize)
	}

	record, err := r(raw, n.now)
	if err != nil {
		return nil, errors.WrapMigrationError(err).
			AddTable(table.String()).
			AddRow(rowID).
			AddStage(errors.StageNormalize)
	}

	return record, nil
}

func rule(build func(r *reader) models.Record) Rule {
	return func(raw map[string]any, now func() time.Time) (models.Record, error) {
		r := &reader{raw: raw, clock: now}
		record := build(r)
		if r.err != nil {
			return nil, r.err
		}

		if _, err := utils.Validate(record); err != nil {
			return nil, err
		}
		return record, nil
	}
}

func person(r *reader) models.Record {
	return models.Person{
		ID:        r.uuid("id"),
		FullName:  r.stringOr("full_name", ""),
		CreatedAt: r.timestamp("created_at"),
		UpdatedAt: r.timestamp("updated_at"),
	}
}

func genre(r *reader) models.Record {
	return models.Genre{
		ID:          r.uuid("id"),
		Name:        r.stringOr("name", ""),
		Description: r.optionalString("description"),
		CreatedAt:   r.timestamp("created_at"),
		UpdatedAt:   r.timestamp("updated_at"),
	}
}

func filmwork(r *reader) models.Record {
	return models.Filmwork{
		ID:           r.uuid("id"),
		Title:        r.stringOr("title", ""),
		Description:  r.optionalString("description"),
		CreationDate: r.optionalTime("creation_date"),
		FilePath:     r.optionalString("file_path"),
		Rating:       r.optionalFloat("rating"),
		Type:         r.stringOr("type", models.DefaultFilmworkType),
		CreatedAt:    r.timestamp("created_at"),
		UpdatedAt:    r.timestamp("updated_at"),
	}
}

func genreFilmwork(r *reader) models.Record {
	return models.GenreFilmwork{
		ID:         r.uuid("id"),
		FilmworkID: r.uuid("film_work_id"),
		GenreID:    r.uuid("genre_id"),
		CreatedAt:  r.timestamp("created_at"),
	}
}

func personFilmwork(r *reader) models.Record {
	return models.PersonFilmwork{
		ID:         r.uuid("id"),
		Role:       r.stringOr("role", ""),
		FilmworkID: r.uuid("film_work_id"),
		PersonID:   r.uuid("person_id"),
		CreatedAt:  r.timestamp("created_at"),
	}
}

// reader pulls typed columns out of a raw row and keeps the first conversion error
type reader struct {
	raw   map[string]any
	clock func() time.Time
	now   *time.Time
	err   error
}

func (r *reader) fail(column string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: %w", column, err)
	}
}

func (r *reader) uuid(column string) uuid.UUID {
	id, err := parseUUID(r.raw[column])
	if err != nil {
		r.fail(column, err)
	}
	return id
}

func (r *reader) stringOr(column, def string) string {
	return stringOrDefault(r.raw[column], def)
}

func (r *reader) optionalString(column string) *string {
	return optionalString(r.raw[column])
}

func (r *reader) optionalTime(column string) *models.Timestamp {
	return optionalTime(r.raw[column])
}

func (r *reader) optionalFloat(column string) *float64 {
	f, err := optionalFloat(r.raw[column])
	if err != nil {
		r.fail(column, err)
	}
	return f
}

// timestamp falls back to the row's "now", taken once so created_at and updated_at agree
func (r *reader) timestamp(column string) models.Timestamp {
	return timeOrNow(r.raw[column], r.currentTime)
}

func (r *reader) currentTime() time.Time {
	if r.now == nil {
		now := r.clock()
		r.now = &now
	}
	return *r.now
}
