package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// QualifiedTable prefixes table with schema when one is set
func QualifiedTable(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

// OnConflictDoNothing turns the insert into a no-op when a row with the same key already
// exists. Without columns any unique constraint conflict is ignored.
func (b *InsertBuilder) OnConflictDoNothing(columns ...string) *InsertBuilder {
	if len(columns) == 0 {
		b.SQL("ON CONFLICT DO NOTHING")
		return b
	}
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(columns, ", ")))
	return b
}

type SelectBuilder struct {
	*sqlbuilder.SelectBuilder
}

// NewSelectBuilder creates a select builder for flavor
func NewSelectBuilder(flavor sqlbuilder.Flavor) *SelectBuilder {
	return &SelectBuilder{flavor.NewSelectBuilder()}
}

type Struct struct {
	*sqlbuilder.Struct
}

func (s *Struct) InsertInto(table string, v ...any) *InsertBuilder {
	return &InsertBuilder{s.Struct.InsertInto(table, v...)}
}

func (s *Struct) SelectFrom(table string) *SelectBuilder {
	return &SelectBuilder{s.Struct.SelectFrom(table)}
}

func NewStruct(v any) *Struct {
	return NewStructFor(v, sqlbuilder.PostgreSQL)
}

// NewStructFor builds a struct mapper that renders SQL for flavor
func NewStructFor(v any, flavor sqlbuilder.Flavor) *Struct {
	return &Struct{sqlbuilder.NewStruct(v).For(flavor)}
}

// ParseFlavor maps a database driver name to its SQL flavor
func ParseFlavor(driverName string) (sqlbuilder.Flavor, error) {
	switch strings.ToLower(driverName) {
	case "postgres", "postgresql", "pgx":
		return sqlbuilder.PostgreSQL, nil
	case "sqlite", "sqlite3":
		return sqlbuilder.SQLite, nil
	default:
		return sqlbuilder.PostgreSQL, fmt.Errorf("unsupported database driver %q", driverName)
	}
}

// FlavorOr returns flavor, or the dialect of db when flavor is the zero value
func FlavorOr(flavor sqlbuilder.Flavor, db DB) sqlbuilder.Flavor {
	if flavor == sqlbuilder.Flavor(0) {
		return db.Flavor()
	}
	return flavor
}
