// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

const (
	formatAuto  = "auto"
	formatTable = "table"
	formatJSON  = "json"
)

// resolveFormat maps "auto" to table output on a terminal and JSON
// lines everywhere else.
func resolveFormat(format string, stdout io.Writer) (string, error) {
	switch format {
	case formatTable, formatJSON:
		return format, nil
	case formatAuto, "":
		if isTerminal(stdout) {
			return formatTable, nil
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want auto, table, or json)", format)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// formatter receives the column names once, then each row.
type formatter interface {
	Header(columns []string) error
	Row(values []any) error
	Flush() error
}

func newFormatter(format string, w io.Writer) formatter {
	if format == formatTable {
		return &tableFormatter{writer: tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)}
	}
	return &jsonFormatter{encoder: json.NewEncoder(w)}
}

type tableFormatter struct {
	writer *tabwriter.Writer
}

func (f *tableFormatter) Header(columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(f.writer, strings.ToUpper(strings.Join(columns, "\t")))
	return err
}

func (f *tableFormatter) Row(values []any) error {
	cells := make([]string, len(values))
	for index, value := range values {
		cells[index] = displayValue(value)
	}
	_, err := fmt.Fprintln(f.writer, strings.Join(cells, "\t"))
	return err
}

func (f *tableFormatter) Flush() error {
	return f.writer.Flush()
}

// displayValue renders one cell for the table: NULL for nil, x'..'
// for raw bytes, and JSON for structured values.
func displayValue(value any) string {
	switch value := value.(type) {
	case nil:
		return "NULL"
	case string:
		return value
	case []byte:
		return "x'" + hex.EncodeToString(value) + "'"
	case map[string]any, []any, bool:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	default:
		return fmt.Sprint(value)
	}
}

// jsonFormatter writes one JSON object per row, keyed by column name.
// Raw bytes are base64 strings.
type jsonFormatter struct {
	encoder *json.Encoder
	columns []string
}

func (f *jsonFormatter) Header(columns []string) error {
	f.columns = columns
	return nil
}

func (f *jsonFormatter) Row(values []any) error {
	object := make(map[string]any, len(values))
	for index, value := range values {
		object[f.columns[index]] = value
	}
	return f.encoder.Encode(object)
}

func (f *jsonFormatter) Flush() error { return nil }
