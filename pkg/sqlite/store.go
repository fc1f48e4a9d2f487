// Package sqlite implements the engine's Store surface on an embedded
// SQLite database, discovering schema dynamically: no table or column is
// assumed up front.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"
)

// Store wraps one database handle. Writes between the first WriteCell for a
// table and the matching Commit or Discard run inside a single transaction,
// so a table's updates land as one unit.
//
// The store is single-writer: it keeps at most one open transaction, which
// matches the engine's sequential per-table apply pass.
type Store struct {
	db *sqlx.DB

	tx      *sqlx.Tx
	txTable string
}

// Open opens the SQLite database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Errorf("opening database %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Errorf("opening database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close rolls back any open transaction and releases the handle.
func (s *Store) Close() error {
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Errorf("closing database: %w", err)
	}
	return nil
}

// quoteIdent quotes a schema identifier. Table and column names come out of
// the database itself, but quoting keeps names with spaces or keywords
// working.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ListTables returns every table name in the database.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := s.db.SelectContext(ctx, &tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, errors.Errorf("listing tables: %w", err)
	}
	return tables, nil
}

// ListColumns returns the column names of one table in schema order.
func (s *Store) ListColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryxContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, errors.Errorf("reading schema of table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		info := struct {
			CID       int    `db:"cid"`
			Name      string `db:"name"`
			Type      string `db:"type"`
			NotNull   int    `db:"notnull"`
			DfltValue any    `db:"dflt_value"`
			PK        int    `db:"pk"`
		}{}
		if err := rows.StructScan(&info); err != nil {
			return nil, errors.Errorf("reading schema of table %s: %w", table, err)
		}
		columns = append(columns, info.Name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("reading schema of table %s: %w", table, err)
	}
	return columns, nil
}

// ForEachRow streams every row of a table as rowid plus a column→value map.
// The cursor is released when iteration ends, whether or not the callback
// failed.
func (s *Store) ForEachRow(ctx context.Context, table string, fn func(rowid int64, values map[string]any) error) error {
	query := fmt.Sprintf(`SELECT rowid AS __rowid, * FROM %s`, quoteIdent(table))
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return errors.Errorf("reading rows of table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		values := map[string]any{}
		if err := rows.MapScan(values); err != nil {
			return errors.Errorf("scanning row of table %s: %w", table, err)
		}

		rowid, ok := values["__rowid"].(int64)
		if !ok {
			return errors.Errorf("table %s: row has no usable rowid", table)
		}
		delete(values, "__rowid")

		if err := fn(rowid, values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Errorf("reading rows of table %s: %w", table, err)
	}
	return nil
}

// ForEachCell streams (rowid, value) for the text cells of one column. Rows
// are fetched before the callbacks run, so the read cursor is closed by the
// time the caller starts staging updates against the same table.
func (s *Store) ForEachCell(ctx context.Context, table, column string, fn func(rowid int64, value string) error) error {
	type cell struct {
		rowid int64
		value string
	}

	cells, err := func() ([]cell, error) {
		query := fmt.Sprintf(`SELECT rowid, %s FROM %s`, quoteIdent(column), quoteIdent(table))
		rows, err := s.db.QueryxContext(ctx, query)
		if err != nil {
			return nil, errors.Errorf("reading column %s.%s: %w", table, column, err)
		}
		defer rows.Close()

		var cells []cell
		for rows.Next() {
			var rowid int64
			var value any
			if err := rows.Scan(&rowid, &value); err != nil {
				return nil, errors.Errorf("scanning cell of %s.%s: %w", table, column, err)
			}
			if text, ok := value.(string); ok {
				cells = append(cells, cell{rowid: rowid, value: text})
			}
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Errorf("reading column %s.%s: %w", table, column, err)
		}
		return cells, nil
	}()
	if err != nil {
		return err
	}

	for _, c := range cells {
		if err := fn(c.rowid, c.value); err != nil {
			return err
		}
	}
	return nil
}

// WriteCell stages a single-cell update inside the table's transaction,
// beginning one lazily on the first write.
func (s *Store) WriteCell(ctx context.Context, table, column string, rowid int64, value string) error {
	if s.tx != nil && s.txTable != table {
		return errors.Errorf("transaction already open for table %s, cannot write to %s", s.txTable, table)
	}
	if s.tx == nil {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return errors.Errorf("beginning transaction for table %s: %w", table, err)
		}
		s.tx = tx
		s.txTable = table
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE rowid = ?`, quoteIdent(table), quoteIdent(column))
	if _, err := s.tx.ExecContext(ctx, query, value, rowid); err != nil {
		return errors.Errorf("updating %s.%s rowid %d: %w", table, column, rowid, err)
	}
	return nil
}

// Commit makes the table's staged updates durable. Committing with nothing
// staged is a no-op.
func (s *Store) Commit(ctx context.Context, table string) error {
	if s.tx == nil {
		return nil
	}
	if s.txTable != table {
		return errors.Errorf("open transaction is for table %s, not %s", s.txTable, table)
	}
	err := s.tx.Commit()
	s.tx = nil
	s.txTable = ""
	if err != nil {
		return errors.Errorf("committing table %s: %w", table, err)
	}
	return nil
}

// Discard rolls back the table's staged updates, if any.
func (s *Store) Discard(ctx context.Context, table string) error {
	if s.tx == nil {
		return nil
	}
	if s.txTable != table {
		return errors.Errorf("open transaction is for table %s, not %s", s.txTable, table)
	}
	err := s.tx.Rollback()
	s.tx = nil
	s.txTable = ""
	if err != nil {
		return errors.Errorf("discarding updates for table %s: %w", table, err)
	}
	return nil
}
