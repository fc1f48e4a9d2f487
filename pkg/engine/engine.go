package engine

import (
	"context"
	"sort"
)

// Store is the database surface the engine drives. Implementations own
// cursor and transaction lifecycles: row iteration releases its cursor when
// the callback returns (success or failure), and writes between the first
// WriteCell for a table and the matching Commit or Discard form one unit.
type Store interface {
	// ListTables returns the names of every table in the database.
	ListTables(ctx context.Context) ([]string, error)

	// ListColumns returns the column names of one table, in schema order.
	ListColumns(ctx context.Context, table string) ([]string, error)

	// ForEachRow streams every row of a table as rowid plus a column→value
	// map. Iteration stops at the first callback error.
	ForEachRow(ctx context.Context, table string, fn func(rowid int64, values map[string]any) error) error

	// ForEachCell streams (rowid, value) for the text cells of one column.
	ForEachCell(ctx context.Context, table, column string, fn func(rowid int64, value string) error) error

	// WriteCell stages an update of a single cell, keyed by rowid.
	WriteCell(ctx context.Context, table, column string, rowid int64, value string) error

	// Commit makes all staged updates for the table durable.
	Commit(ctx context.Context, table string) error

	// Discard throws away any staged updates for the table.
	Discard(ctx context.Context, table string) error
}

// MatchReport records which (table, column) pairs contain at least one
// matching cell, plus the total number of matching cells across the whole
// database. A table with zero matches is simply absent.
type MatchReport struct {
	// Columns maps table name to the distinct columns with matches, in the
	// order they were discovered.
	Columns map[string][]string

	// Total counts matching cells, one per cell regardless of column.
	Total int
}

func newMatchReport() *MatchReport {
	return &MatchReport{Columns: map[string][]string{}}
}

// record notes a matching cell. The column is stored once per table; the
// total grows once per cell.
func (r *MatchReport) record(table, column string) {
	cols := r.Columns[table]
	found := false
	for _, c := range cols {
		if c == column {
			found = true
			break
		}
	}
	if !found {
		r.Columns[table] = append(cols, column)
	}
	r.Total++
}

// Empty reports whether no cell matched anywhere.
func (r *MatchReport) Empty() bool {
	return r.Total == 0
}

// Tables returns the flagged table names in sorted order, so that apply and
// display passes are deterministic.
func (r *MatchReport) Tables() []string {
	tables := make([]string, 0, len(r.Columns))
	for t := range r.Columns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
