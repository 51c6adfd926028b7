package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// AccessFilter selects rows of the access table. The zero value selects
// every access in issue order.
type AccessFilter struct {
	// Kind keeps only one kind of access, such as "Load". Empty keeps all.
	Kind string

	// MinLatency keeps the accesses that took at least this many cycles.
	MinLatency uint64

	// FaultsOnly keeps the accesses that completed with a fault.
	FaultsOnly bool

	// SlowestFirst orders by latency, longest first, instead of by issue
	// cycle.
	SlowestFirst bool

	// Limit is the maximum number of rows to return. 0 returns all.
	Limit int

	// Offset skips rows, for paging.
	Offset int
}

func (f AccessFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.Kind != "" {
		conds = append(conds, "Kind = ?")
		args = append(args, f.Kind)
	}

	if f.MinLatency > 0 {
		conds = append(conds, "Latency >= ?")
		args = append(args, f.MinLatency)
	}

	if f.FaultsOnly {
		conds = append(conds, "Fault != ''")
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// KindSummary aggregates the recorded accesses of one kind.
type KindSummary struct {
	Kind       string
	Count      uint64
	Faults     uint64
	AvgLatency float64
	MaxLatency uint64
}

// RecordReader reads back the tables of a recorded run.
type RecordReader struct {
	db *sql.DB
}

// OpenRecord opens a database written by a recorded run. Unlike sql.Open, it
// fails if the file does not exist rather than creating an empty one.
func OpenRecord(path string) (*RecordReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	return &RecordReader{db: db}, nil
}

// NewRecordReaderWithDB reads the tables from an open database.
func NewRecordReaderWithDB(db *sql.DB) *RecordReader {
	return &RecordReader{db: db}
}

// Accesses returns the accesses that match f and the number of matching
// accesses before Limit and Offset apply.
func (r *RecordReader) Accesses(
	ctx context.Context,
	f AccessFilter,
) ([]AccessEntry, int, error) {
	where, args := f.where()

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+AccessTable+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	order := " ORDER BY IssueCycle, rowid"
	if f.SlowestFirst {
		order = " ORDER BY Latency DESC, IssueCycle, rowid"
	}

	// SQLite reads a negative limit as no limit.
	limit := -1
	if f.Limit > 0 {
		limit = f.Limit
	}

	query := "SELECT ID, Kind, Address, ByteSize, IssueCycle, " +
		"CompleteCycle, Latency, Fault FROM " + AccessTable +
		where + order + " LIMIT ? OFFSET ?"

	entries, err := queryRows(ctx, r.db,
		func(rows *sql.Rows, e *AccessEntry) error {
			return rows.Scan(&e.ID, &e.Kind, &e.Address, &e.ByteSize,
				&e.IssueCycle, &e.CompleteCycle, &e.Latency, &e.Fault)
		},
		query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Summarize aggregates the accesses per kind, ordered by kind.
func (r *RecordReader) Summarize(ctx context.Context) ([]KindSummary, error) {
	query := "SELECT Kind, COUNT(*), SUM(Fault != ''), AVG(Latency), " +
		"MAX(Latency) FROM " + AccessTable + " GROUP BY Kind ORDER BY Kind"

	return queryRows(ctx, r.db,
		func(rows *sql.Rows, s *KindSummary) error {
			return rows.Scan(&s.Kind, &s.Count, &s.Faults,
				&s.AvgLatency, &s.MaxLatency)
		},
		query)
}

// CacheStats returns the final statistics of every recorded cache level in
// the order they were recorded.
func (r *RecordReader) CacheStats(
	ctx context.Context,
) ([]CacheStatsEntry, error) {
	query := "SELECT Name, Level, Reads, Writes, Hits, Misses, Coalesced, " +
		"Rejected, Evictions, Writebacks, Faults, HitRate FROM " +
		CacheStatsTable + " ORDER BY rowid"

	return queryRows(ctx, r.db,
		func(rows *sql.Rows, e *CacheStatsEntry) error {
			return rows.Scan(&e.Name, &e.Level, &e.Reads, &e.Writes, &e.Hits,
				&e.Misses, &e.Coalesced, &e.Rejected, &e.Evictions,
				&e.Writebacks, &e.Faults, &e.HitRate)
		},
		query)
}

// ExecInfo returns the properties of the recorded run in the order they were
// recorded.
func (r *RecordReader) ExecInfo(ctx context.Context) ([]ExecInfo, error) {
	query := "SELECT Property, Value FROM " + ExecInfoTable + " ORDER BY rowid"

	return queryRows(ctx, r.db,
		func(rows *sql.Rows, e *ExecInfo) error {
			return rows.Scan(&e.Property, &e.Value)
		},
		query)
}

// Close closes the database.
func (r *RecordReader) Close() error {
	return r.db.Close()
}

func queryRows[T any](
	ctx context.Context,
	db *sql.DB,
	scan func(rows *sql.Rows, v *T) error,
	query string,
	args ...any,
) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []T

	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, fmt.Errorf("reading %q: %w", query, err)
		}

		results = append(results, v)
	}

	return results, rows.Err()
}
