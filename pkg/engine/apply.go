package engine

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/ewtools/ewsub/pkg/text"
)

// Error kinds for the two failure classes of a run. Both carry table /
// column / rowid context in the wrapped message so a user can re-run
// narrowed to the failing scope.
var (
	// ErrSchemaAccess marks a failure enumerating or reading the database.
	// The run aborts; nothing staged for the failing table is kept.
	ErrSchemaAccess = errors.New("schema access failed")

	// ErrPersistence marks a failure staging or committing updates. Tables
	// committed before the failure keep their changes: commits are per
	// table, there is no whole-run transaction.
	ErrPersistence = errors.New("persisting updates failed")
)

// Diff is one previewed cell change, emitted in dry-run mode.
type Diff struct {
	Table     string
	Column    string
	RowID     int64
	Rendering text.Rendering
}

// ApplyOptions controls the rewrite pass.
type ApplyOptions struct {
	// DryRun renders diffs instead of staging updates. Nothing is written.
	DryRun bool

	// OnDiff receives every previewed change in dry-run mode.
	OnDiff func(Diff)

	// OnProgress, when non-nil, is called after each processed cell with the
	// running count and the report total. Throttling is the caller's choice.
	OnProgress func(processed, total int)
}

// Summary is what a run did, for the layer above to decide whether the
// archive needs repacking.
type Summary struct {
	Replaced int  // cells rewritten, or previewed in dry-run mode
	Tables   int  // tables touched
	Columns  int  // columns touched across all tables
	DryRun   bool // whether anything was persisted
}

// Apply drives the rewrite over every flagged column of every flagged table.
// Each cell is re-tested with the identical Matcher predicate used by Scan,
// substituted, and then either previewed as a diff (dry run) or staged as a
// single-cell update. A table's staged updates commit as one unit after all
// of its columns are processed; a failure stops the run and leaves earlier
// tables committed.
func Apply(ctx context.Context, store Store, report *MatchReport, pattern text.Pattern, replacement string, opts ApplyOptions) (*Summary, error) {
	summary := &Summary{DryRun: opts.DryRun}
	processed := 0

	for _, table := range report.Tables() {
		if err := applyTable(ctx, store, table, report.Columns[table], pattern, replacement, opts, summary, &processed, report.Total); err != nil {
			return nil, err
		}
		summary.Tables++
	}

	return summary, nil
}

// applyTable processes one table: fetch rows column by column, substitute
// matching cells, then commit the staged updates as one unit. Staged updates
// are discarded on any failure before the commit point.
func applyTable(ctx context.Context, store Store, table string, columns []string, pattern text.Pattern, replacement string, opts ApplyOptions, summary *Summary, processed *int, total int) (err error) {
	staged := false
	defer func() {
		if err != nil && staged {
			if derr := store.Discard(ctx, table); derr != nil {
				zerolog.Ctx(ctx).Warn().Err(derr).Str("table", table).Msg("discarding staged updates failed")
			}
		}
	}()

	for _, column := range columns {
		cellErr := store.ForEachCell(ctx, table, column, func(rowid int64, value string) error {
			if !pattern.Matches(value) {
				return nil
			}

			newValue := pattern.Substitute(replacement, value)

			if opts.DryRun {
				rendering, derr := pattern.Diff(replacement, value, newValue)
				if derr != nil {
					return errors.Errorf("rendering diff for %s.%s rowid %d: %w", table, column, rowid, derr)
				}
				if opts.OnDiff != nil {
					opts.OnDiff(Diff{Table: table, Column: column, RowID: rowid, Rendering: rendering})
				}
			} else {
				if werr := store.WriteCell(ctx, table, column, rowid, newValue); werr != nil {
					return errors.Errorf("%w: updating %s.%s rowid %d: %w", ErrPersistence, table, column, rowid, werr)
				}
				staged = true
			}

			summary.Replaced++
			*processed++
			if opts.OnProgress != nil {
				opts.OnProgress(*processed, total)
			}
			return nil
		})
		if cellErr != nil {
			if errors.Is(cellErr, ErrPersistence) || errors.Is(cellErr, text.ErrDiffMisaligned) {
				return cellErr
			}
			return errors.Errorf("%w: reading %s.%s: %w", ErrSchemaAccess, table, column, cellErr)
		}
		summary.Columns++
	}

	if opts.DryRun {
		// Nothing was staged; the table cycle ends in Discarded.
		return nil
	}
	if err := store.Commit(ctx, table); err != nil {
		return errors.Errorf("%w: committing table %s: %w", ErrPersistence, table, err)
	}
	staged = false

	zerolog.Ctx(ctx).Debug().Str("table", table).Msg("table committed")
	return nil
}
