// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/sqlrt/lib/sqlvalue"
)

// rowDecoder converts the current row of a statement into a host
// value. It is derived from the storage classes reported for the first
// row a statement produces and memoized on the cache entry.
type rowDecoder struct {
	columns []sqlvalue.ColumnFunc
}

func deriveDecoder(stmt *sqlite.Stmt) *rowDecoder {
	count := stmt.ColumnCount()
	columns := make([]sqlvalue.ColumnFunc, count)
	for col := range count {
		columns[col] = sqlvalue.ColumnReader(stmt.ColumnType(col))
	}
	return &rowDecoder{columns: columns}
}

// decoderFor returns the memoized decoder of entry, deriving it on the
// first row. A statement whose column count no longer matches the
// memoized decoder, which happens when SQLite recompiles it after a
// schema change, gets a fresh decoder.
func (entry *cacheEntry) decoderFor(stmt *sqlite.Stmt) *rowDecoder {
	if entry.decoder == nil || len(entry.decoder.columns) != stmt.ColumnCount() {
		entry.decoder = deriveDecoder(stmt)
	}
	return entry.decoder
}

// decode reads the current row. One column yields the bare value; more
// yield a []any in column order.
func (d *rowDecoder) decode(stmt *sqlite.Stmt) (any, error) {
	if len(d.columns) == 1 {
		value, err := d.columns[0](stmt, 0)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", stmt.ColumnName(0), err)
		}
		return value, nil
	}
	row := make([]any, len(d.columns))
	for col, read := range d.columns {
		value, err := read(stmt, col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", stmt.ColumnName(col), err)
		}
		row[col] = value
	}
	return row, nil
}

// Columns returns row as a slice of width values. A bare value counts
// as a one-column row. A row of a different width is reported as a
// *sqlvalue.ProtocolError.
func Columns(row any, width int) ([]any, error) {
	values, ok := row.([]any)
	if !ok {
		values = []any{row}
	}
	if len(values) != width {
		return nil, &sqlvalue.ProtocolError{
			Reason: fmt.Sprintf("row has %d columns, want %d", len(values), width),
		}
	}
	return values, nil
}
