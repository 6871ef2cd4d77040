// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlvalue

import (
	"fmt"
	"math"

	"zombiezen.com/go/sqlite"
)

// Kind is the storage class a host value binds as.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

// String returns the SQLite name of the storage class.
func (kind Kind) String() string {
	switch kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return fmt.Sprintf("Kind(%d)", kind)
	}
}

// Classify reports the storage class value binds as, and for integer
// kinds, the value widened to int64.
func Classify(value any) (Kind, int64) {
	switch typed := value.(type) {
	case nil:
		return KindNull, 0
	case int:
		return KindInteger, int64(typed)
	case int8:
		return KindInteger, int64(typed)
	case int16:
		return KindInteger, int64(typed)
	case int32:
		return KindInteger, int64(typed)
	case int64:
		return KindInteger, typed
	case uint8:
		return KindInteger, int64(typed)
	case uint16:
		return KindInteger, int64(typed)
	case uint32:
		return KindInteger, int64(typed)
	case uint:
		if uint64(typed) <= math.MaxInt64 {
			return KindInteger, int64(typed)
		}
	case uint64:
		if typed <= math.MaxInt64 {
			return KindInteger, int64(typed)
		}
	case float32, float64:
		return KindFloat, 0
	case string:
		return KindText, 0
	}
	return KindBlob, 0
}

func asFloat(value any) float64 {
	if typed, ok := value.(float32); ok {
		return float64(typed)
	}
	return value.(float64)
}

// Bind binds value to the 1-indexed parameter of stmt according to
// its classification.
func (c *Codec) Bind(stmt *sqlite.Stmt, param int, value any) error {
	kind, integer := Classify(value)
	switch kind {
	case KindNull:
		stmt.BindNull(param)
	case KindInteger:
		stmt.BindInt64(param, integer)
	case KindFloat:
		stmt.BindFloat(param, asFloat(value))
	case KindText:
		stmt.BindText(param, value.(string))
	default:
		blob, err := c.EncodeBlob(value)
		if err != nil {
			return fmt.Errorf("binding parameter %d: %w", param, err)
		}
		stmt.BindBytes(param, blob)
	}
	return nil
}

// BindAll binds params to stmt positionally, starting at parameter 1.
func (c *Codec) BindAll(stmt *sqlite.Stmt, params []any) error {
	for index, value := range params {
		if err := c.Bind(stmt, index+1, value); err != nil {
			return err
		}
	}
	return nil
}

// Value converts a host value into an engine value, used for
// application function results.
func (c *Codec) Value(value any) (sqlite.Value, error) {
	kind, integer := Classify(value)
	switch kind {
	case KindNull:
		return sqlite.Value{}, nil
	case KindInteger:
		return sqlite.IntegerValue(integer), nil
	case KindFloat:
		return sqlite.FloatValue(asFloat(value)), nil
	case KindText:
		return sqlite.TextValue(value.(string)), nil
	default:
		blob, err := c.EncodeBlob(value)
		if err != nil {
			return sqlite.Value{}, err
		}
		return sqlite.BlobValue(blob), nil
	}
}

// FromValue converts an engine value (an application function
// argument) into a host value.
func FromValue(value sqlite.Value) (any, error) {
	switch value.Type() {
	case sqlite.TypeInteger:
		return value.Int64(), nil
	case sqlite.TypeFloat:
		return value.Float(), nil
	case sqlite.TypeText:
		return value.Text(), nil
	case sqlite.TypeBlob:
		return DecodeBlob(value.Blob())
	default:
		return nil, nil
	}
}

// ColumnFunc reads one result column of the current row.
type ColumnFunc func(stmt *sqlite.Stmt, col int) (any, error)

// ColumnReader returns the read primitive for a storage class. The
// returned function checks the cell's actual class first and falls
// back to [ReadColumn] when it differs, so a NULL or a type-drifted
// cell in a later row still decodes correctly.
func ColumnReader(class sqlite.ColumnType) ColumnFunc {
	var primitive ColumnFunc
	switch class {
	case sqlite.TypeInteger:
		primitive = readInteger
	case sqlite.TypeFloat:
		primitive = readFloat
	case sqlite.TypeText:
		primitive = readText
	case sqlite.TypeBlob:
		primitive = readBlob
	default:
		return ReadColumn
	}
	return func(stmt *sqlite.Stmt, col int) (any, error) {
		if stmt.ColumnType(col) != class {
			return ReadColumn(stmt, col)
		}
		return primitive(stmt, col)
	}
}

// ReadColumn reads a cell by dispatching on its reported storage
// class.
func ReadColumn(stmt *sqlite.Stmt, col int) (any, error) {
	switch stmt.ColumnType(col) {
	case sqlite.TypeInteger:
		return readInteger(stmt, col)
	case sqlite.TypeFloat:
		return readFloat(stmt, col)
	case sqlite.TypeText:
		return readText(stmt, col)
	case sqlite.TypeBlob:
		return readBlob(stmt, col)
	default:
		return nil, nil
	}
}

func readInteger(stmt *sqlite.Stmt, col int) (any, error) {
	return stmt.ColumnInt64(col), nil
}

func readFloat(stmt *sqlite.Stmt, col int) (any, error) {
	return stmt.ColumnFloat(col), nil
}

func readText(stmt *sqlite.Stmt, col int) (any, error) {
	return stmt.ColumnText(col), nil
}

func readBlob(stmt *sqlite.Stmt, col int) (any, error) {
	blob := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, blob)
	return DecodeBlob(blob)
}
