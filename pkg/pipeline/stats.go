package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// TableStats tracks the outcome of migrating one table
type TableStats struct {
	Table    string        `json:"table"`
	Read     int           `json:"read"`
	Inserted int           `json:"inserted"`
	Skipped  int           `json:"skipped"`
	Rejected int           `json:"rejected"`
	Failed   int           `json:"failed"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
}

// Stats tracks a whole migration run. It is safe for concurrent use.
type Stats struct {
	mu         sync.Mutex
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Tables     []*TableStats `json:"tables"`
	byTable    [models.TableCount]*TableStats
}

func newStats(runID string, tables []models.Table) *Stats {
	s := &Stats{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Tables:    make([]*TableStats, 0, len(tables)),
	}
	for _, t := range tables {
		ts := &TableStats{Table: t.String()}
		s.byTable[t] = ts
		s.Tables = append(s.Tables, ts)
	}
	return s
}

// Table returns the counters of t, or nil when t was not part of the run
func (s *Stats) Table(t models.Table) *TableStats {
	if !t.Valid() {
		return nil
	}
	return s.byTable[t]
}

func (s *Stats) update(t models.Table, fn func(ts *TableStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts := s.Table(t); ts != nil {
		fn(ts)
	}
}

// Totals sums the counters of every table
func (s *Stats) Totals() TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := TableStats{Table: "TOTAL"}
	for _, ts := range s.Tables {
		total.Read += ts.Read
		total.Inserted += ts.Inserted
		total.Skipped += ts.Skipped
		total.Rejected += ts.Rejected
		total.Failed += ts.Failed
		total.Chunks += ts.Chunks
		total.Duration += ts.Duration
	}
	return total
}

// Snapshot returns a copy of the stats that is safe to serialize while the run continues
func (s *Stats) Snapshot() *Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Stats{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Tables:     make([]*TableStats, 0, len(s.Tables)),
	}
	for _, ts := range s.Tables {
		cp := *ts
		c.Tables = append(c.Tables, &cp)
		if t, err := models.ParseTable(cp.Table); err == nil {
			c.byTable[t] = &cp
		}
	}
	return c
}

// Print writes the migration summary table to w
func (s *Stats) Print(w io.Writer) {
	snap := s.Snapshot()
	total := snap.Totals()

	fmt.Fprintln(w, "\n=== Migration Summary ===")
	fmt.Fprintf(w, "Run: %s\n", snap.RunID)
	if !snap.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration: %s\n", snap.FinishedAt.Sub(snap.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	line := strings.Repeat("-", 96)
	fmt.Fprintf(w, "%-20s %8s %8s %8s %8s %8s %8s %12s\n",
		"Table", "Read", "Inserted", "Skipped", "Rejected", "Failed", "Chunks", "Duration")
	fmt.Fprintln(w, line)
	for _, ts := range append(snap.Tables, &total) {
		if ts == &total {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintf(w, "%-20s %8d %8d %8d %8d %8d %8d %12s\n",
			ts.Table, ts.Read, ts.Inserted, ts.Skipped, ts.Rejected, ts.Failed, ts.Chunks,
			ts.Duration.Round(time.Millisecond))
	}
}
