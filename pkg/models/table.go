package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Table identifies one of the migrated tables.
type Table int

const (
	TablePerson Table = iota
	TableGenre
	TableFilmwork
	TableGenreFilmwork
	TablePersonFilmwork

	// TableCount is the number of known tables. Arrays indexed by Table use it as their length.
	TableCount
)

var tableNames = [TableCount]string{
	TablePerson:         "person",
	TableGenre:          "genre",
	TableFilmwork:       "film_work",
	TableGenreFilmwork:  "genre_film_work",
	TablePersonFilmwork: "person_film_work",
}

// AllTables returns every table in migration order. Parent tables come before the link tables
// that reference them.
func AllTables() []Table {
	tables := make([]Table, 0, TableCount)
	for t := Table(0); t < TableCount; t++ {
		tables = append(tables, t)
	}
	return tables
}

// String returns the SQL table name
func (t Table) String() string {
	if !t.Valid() {
		return fmt.Sprintf("table(%d)", int(t))
	}
	return tableNames[t]
}

// Valid reports whether t names a known table
func (t Table) Valid() bool {
	return t >= 0 && t < TableCount
}

// ParseTable resolves a table name such as "film_work"
func ParseTable(name string) (Table, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range tableNames {
		if n == name {
			return Table(t), nil
		}
	}
	return 0, fmt.Errorf("unknown table %q", name)
}

// ParseTables resolves a list of table names and returns them in migration order.
// An empty list selects every table.
func ParseTables(names []string) ([]Table, error) {
	if len(names) == 0 {
		return AllTables(), nil
	}

	selected := make(map[Table]bool, len(names))
	for _, name := range names {
		t, err := ParseTable(name)
		if err != nil {
			return nil, err
		}
		selected[t] = true
	}

	tables := make([]Table, 0, len(selected))
	for _, t := range AllTables() {
		if selected[t] {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

// Record is a normalized row ready to be written to the destination
type Record interface {
	Table() Table
	RecordID() uuid.UUID
}
