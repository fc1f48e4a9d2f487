package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/ewtools/ewsub/pkg/text"
)

// fakeStore is an in-memory Store for exercising the scan and apply passes
// without a database. Cells hold arbitrary values so non-text skipping is
// covered too.
type fakeStore struct {
	tables  []string
	columns map[string][]string
	rows    map[string][]fakeRow // table -> rows

	staged    map[string]map[string]map[int64]string // table -> column -> rowid -> value
	committed []string
	discarded []string

	failCommitTable string
	failWriteTable  string
}

type fakeRow struct {
	id     int64
	values map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		columns: map[string][]string{},
		rows:    map[string][]fakeRow{},
		staged:  map[string]map[string]map[int64]string{},
	}
}

func (s *fakeStore) addTable(name string, columns []string, rows ...fakeRow) {
	s.tables = append(s.tables, name)
	s.columns[name] = columns
	s.rows[name] = rows
}

func (s *fakeStore) ListTables(ctx context.Context) ([]string, error) {
	return s.tables, nil
}

func (s *fakeStore) ListColumns(ctx context.Context, table string) ([]string, error) {
	cols, ok := s.columns[table]
	if !ok {
		return nil, errors.Errorf("no such table: %s", table)
	}
	return cols, nil
}

func (s *fakeStore) ForEachRow(ctx context.Context, table string, fn func(int64, map[string]any) error) error {
	for _, r := range s.rows[table] {
		if err := fn(r.id, r.values); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) ForEachCell(ctx context.Context, table, column string, fn func(int64, string) error) error {
	for _, r := range s.rows[table] {
		v, ok := r.values[column].(string)
		if !ok {
			continue
		}
		if err := fn(r.id, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) WriteCell(ctx context.Context, table, column string, rowid int64, value string) error {
	if table == s.failWriteTable {
		return errors.New("disk I/O error")
	}
	if s.staged[table] == nil {
		s.staged[table] = map[string]map[int64]string{}
	}
	if s.staged[table][column] == nil {
		s.staged[table][column] = map[int64]string{}
	}
	s.staged[table][column][rowid] = value
	return nil
}

func (s *fakeStore) Commit(ctx context.Context, table string) error {
	if table == s.failCommitTable {
		return errors.New("database is locked")
	}
	for column, cells := range s.staged[table] {
		for rowid, value := range cells {
			for i, r := range s.rows[table] {
				if r.id == rowid {
					s.rows[table][i].values[column] = value
				}
			}
		}
	}
	delete(s.staged, table)
	s.committed = append(s.committed, table)
	return nil
}

func (s *fakeStore) Discard(ctx context.Context, table string) error {
	delete(s.staged, table)
	s.discarded = append(s.discarded, table)
	return nil
}

func (s *fakeStore) cell(table string, rowid int64, column string) any {
	for _, r := range s.rows[table] {
		if r.id == rowid {
			return r.values[column]
		}
	}
	return nil
}

func songStore() *fakeStore {
	s := newFakeStore()
	s.addTable("Songs", []string{"id", "title"},
		fakeRow{id: 1, values: map[string]any{"id": int64(1), "title": "Amazing Grace"}},
		fakeRow{id: 2, values: map[string]any{"id": int64(2), "title": "How Great Thou Art"}},
	)
	return s
}

func mustCompile(t *testing.T, expr string, opts text.Options) text.Pattern {
	t.Helper()
	p, err := text.Compile(expr, opts)
	require.NoError(t, err)
	return p
}

func TestScan(t *testing.T) {
	ctx := context.Background()

	t.Run("plain_ignore_case", func(t *testing.T) {
		store := songStore()
		p := mustCompile(t, "great", text.Options{IgnoreCase: true})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		assert.Equal(t, 1, report.Total)
		assert.Equal(t, map[string][]string{"Songs": {"title"}}, report.Columns)
	})

	t.Run("column_recorded_once_total_per_cell", func(t *testing.T) {
		store := newFakeStore()
		store.addTable("Lyrics", []string{"line"},
			fakeRow{id: 1, values: map[string]any{"line": "grace upon grace"}},
			fakeRow{id: 2, values: map[string]any{"line": "amazing grace"}},
			fakeRow{id: 3, values: map[string]any{"line": "nothing"}},
		)
		p := mustCompile(t, "grace", text.Options{})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		// Two matching cells; the multi-occurrence cell still counts once.
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, []string{"line"}, report.Columns["Lyrics"])
	})

	t.Run("non_text_cells_skipped", func(t *testing.T) {
		store := newFakeStore()
		store.addTable("Mixed", []string{"n", "b", "s"},
			fakeRow{id: 1, values: map[string]any{"n": int64(42), "b": []byte("42"), "s": "42"}},
			fakeRow{id: 2, values: map[string]any{"n": nil, "b": nil, "s": nil}},
		)
		p := mustCompile(t, "42", text.Options{})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		assert.Equal(t, 1, report.Total)
		assert.Equal(t, []string{"s"}, report.Columns["Mixed"])
	})

	t.Run("no_matches_empty_report", func(t *testing.T) {
		store := songStore()
		p := mustCompile(t, "zzz", text.Options{})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		assert.True(t, report.Empty())
		assert.Empty(t, report.Columns)
	})

	t.Run("table_filter", func(t *testing.T) {
		store := songStore()
		store.addTable("Notes", []string{"body"},
			fakeRow{id: 1, values: map[string]any{"body": "Great notes"}},
		)
		p := mustCompile(t, "Great", text.Options{})

		report, err := Scan(ctx, store, p, ScanOptions{
			TableFilter: func(table string) bool { return table != "Notes" },
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"Songs"}, report.Tables())
	})
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("write_mode_commits_per_table", func(t *testing.T) {
		store := songStore()
		p := mustCompile(t, "great", text.Options{IgnoreCase: true})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		summary, err := Apply(ctx, store, report, p, "GREAT", ApplyOptions{})
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Replaced)
		assert.Equal(t, 1, summary.Tables)
		assert.Equal(t, 1, summary.Columns)
		assert.False(t, summary.DryRun)

		assert.Equal(t, "How GREAT Thou Art", store.cell("Songs", 2, "title"))
		assert.Equal(t, "Amazing Grace", store.cell("Songs", 1, "title"))
		assert.Equal(t, []string{"Songs"}, store.committed)
	})

	t.Run("dry_run_renders_diffs_and_writes_nothing", func(t *testing.T) {
		store := songStore()
		p := mustCompile(t, "great", text.Options{IgnoreCase: true})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		var diffs []Diff
		summary, err := Apply(ctx, store, report, p, "GREAT", ApplyOptions{
			DryRun: true,
			OnDiff: func(d Diff) { diffs = append(diffs, d) },
		})
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Replaced)
		assert.True(t, summary.DryRun)
		require.Len(t, diffs, 1)
		assert.Equal(t, "Songs", diffs[0].Table)
		assert.Equal(t, "title", diffs[0].Column)
		assert.Equal(t, int64(2), diffs[0].RowID)

		// Database untouched.
		assert.Equal(t, "How Great Thou Art", store.cell("Songs", 2, "title"))
		assert.Empty(t, store.committed)
		assert.Empty(t, store.staged)
	})

	t.Run("progress_counts_match_report_total", func(t *testing.T) {
		store := newFakeStore()
		store.addTable("Lyrics", []string{"line"},
			fakeRow{id: 1, values: map[string]any{"line": "grace"}},
			fakeRow{id: 2, values: map[string]any{"line": "grace again"}},
			fakeRow{id: 3, values: map[string]any{"line": "none"}},
		)
		p := mustCompile(t, "grace", text.Options{})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		var seen [][2]int
		_, err = Apply(ctx, store, report, p, "mercy", ApplyOptions{
			OnProgress: func(processed, total int) { seen = append(seen, [2]int{processed, total}) },
		})
		require.NoError(t, err)

		require.Equal(t, [][2]int{{1, 2}, {2, 2}}, seen)
	})

	t.Run("regex_group_substitution", func(t *testing.T) {
		store := songStore()
		p := mustCompile(t, `(\w+) Thou`, text.Options{Regex: true})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		_, err = Apply(ctx, store, report, p, "$1, Thou", ApplyOptions{})
		require.NoError(t, err)

		assert.Equal(t, "How Great, Thou Art", store.cell("Songs", 2, "title"))
	})

	t.Run("commit_failure_stops_run_keeps_earlier_tables", func(t *testing.T) {
		store := newFakeStore()
		store.addTable("Alpha", []string{"v"},
			fakeRow{id: 1, values: map[string]any{"v": "old"}},
		)
		store.addTable("Beta", []string{"v"},
			fakeRow{id: 1, values: map[string]any{"v": "old"}},
		)
		store.failCommitTable = "Beta"
		p := mustCompile(t, "old", text.Options{})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		_, err = Apply(ctx, store, report, p, "new", ApplyOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Contains(t, err.Error(), "Beta")

		// Alpha committed before the failure, Beta's staging was discarded.
		assert.Equal(t, "new", store.cell("Alpha", 1, "v"))
		assert.Equal(t, "old", store.cell("Beta", 1, "v"))
		assert.Equal(t, []string{"Alpha"}, store.committed)
		assert.Equal(t, []string{"Beta"}, store.discarded)
	})

	t.Run("write_failure_reports_scope", func(t *testing.T) {
		store := songStore()
		store.failWriteTable = "Songs"
		p := mustCompile(t, "Grace", text.Options{})

		report, err := Scan(ctx, store, p, ScanOptions{})
		require.NoError(t, err)

		_, err = Apply(ctx, store, report, p, "Mercy", ApplyOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Contains(t, err.Error(), "Songs.title")
		assert.Contains(t, err.Error(), "rowid 1")
	})
}
