package models

import (
	"database/sql/driver"
	"time"
)

// Timestamp is a point in time read from the source. Text that no known layout understands is
// kept in Raw and written as is, leaving the destination to parse it.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// At wraps a parsed time
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Verbatim wraps source text that could not be parsed
func Verbatim(raw string) Timestamp {
	return Timestamp{Raw: raw}
}

func (t Timestamp) IsVerbatim() bool {
	return t.Raw != ""
}

func (t Timestamp) Value() (driver.Value, error) {
	if t.IsVerbatim() {
		return t.Raw, nil
	}
	return t.Time, nil
}

func (t Timestamp) String() string {
	if t.IsVerbatim() {
		return t.Raw
	}
	return t.Time.Format(time.RFC3339Nano)
}
