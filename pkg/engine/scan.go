package engine

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/ewtools/ewsub/pkg/text"
)

// ScanOptions tunes the scan pass.
type ScanOptions struct {
	// TableFilter, when non-nil, limits the scan to tables it accepts.
	TableFilter func(table string) bool
}

// Scan visits every text cell of every table and builds the MatchReport for
// the pattern. Non-text cells (numeric, blob, null) are never candidates and
// are skipped without error.
//
// The same Pattern drives the later Apply pass, so the report's total is
// exactly the number of cells Apply will process.
func Scan(ctx context.Context, store Store, pattern text.Pattern, opts ScanOptions) (*MatchReport, error) {
	tables, err := store.ListTables(ctx)
	if err != nil {
		return nil, errors.Errorf("%w: listing tables: %w", ErrSchemaAccess, err)
	}

	report := newMatchReport()

	for _, table := range tables {
		if opts.TableFilter != nil && !opts.TableFilter(table) {
			zerolog.Ctx(ctx).Debug().Str("table", table).Msg("table excluded by filter")
			continue
		}

		columns, err := store.ListColumns(ctx, table)
		if err != nil {
			return nil, errors.Errorf("%w: listing columns of table %s: %w", ErrSchemaAccess, table, err)
		}

		err = store.ForEachRow(ctx, table, func(rowid int64, values map[string]any) error {
			for _, column := range columns {
				cell, ok := values[column].(string)
				if !ok {
					continue
				}
				if pattern.Matches(cell) {
					report.record(table, column)
				}
			}
			return nil
		})
		if err != nil {
			return nil, errors.Errorf("%w: scanning table %s: %w", ErrSchemaAccess, table, err)
		}

		zerolog.Ctx(ctx).Debug().
			Str("table", table).
			Strs("columns", report.Columns[table]).
			Msg("table scanned")
	}

	return report, nil
}
