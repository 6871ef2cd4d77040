// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Pragma is one PRAGMA name=value applied when a connection opens.
type Pragma struct {
	Name  string
	Value string
}

func (pragma Pragma) String() string {
	return "PRAGMA " + pragma.Name + "=" + pragma.Value
}

// DefaultPragmas returns the pragmas every connection starts from, in
// application order. query_only is not listed: it is always applied
// last, true for readers and false for the writer.
func DefaultPragmas() []Pragma {
	return []Pragma{
		{"cache_size", "-8192"},
		{"page_size", "4096"},
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"temp_store", "MEMORY"},
		{"foreign_keys", "ON"},
		{"busy_timeout", "5000"},
		{"wal_autocheckpoint", "0"},
		{"mmap_size", "268435456"},
	}
}

var (
	pragmaName  = regexp.MustCompile(`^[a-z_]+$`)
	pragmaValue = regexp.MustCompile(`^-?[A-Za-z0-9_]+$`)
)

// pragmaList merges overrides into the defaults. Overrides for a
// default replace its value in place; other overrides are appended in
// name order. query_only is appended last.
func pragmaList(overrides map[string]string, readOnly bool) ([]Pragma, error) {
	pragmas := DefaultPragmas()
	known := map[string]bool{}
	for index, pragma := range pragmas {
		known[pragma.Name] = true
		if value, ok := overrides[pragma.Name]; ok {
			pragmas[index].Value = value
		}
	}
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		if name == "query_only" {
			return nil, fmt.Errorf("sqlitepool: pragma query_only is set by connection role")
		}
		if !known[name] {
			pragmas = append(pragmas, Pragma{Name: name, Value: overrides[name]})
		}
	}
	for _, pragma := range pragmas {
		if !pragmaName.MatchString(pragma.Name) {
			return nil, fmt.Errorf("sqlitepool: invalid pragma name %q", pragma.Name)
		}
		if !pragmaValue.MatchString(pragma.Value) {
			return nil, fmt.Errorf("sqlitepool: invalid value %q for pragma %s", pragma.Value, pragma.Name)
		}
	}
	queryOnly := Pragma{Name: "query_only", Value: "OFF"}
	if readOnly {
		queryOnly.Value = "ON"
	}
	return append(pragmas, queryOnly), nil
}

func applyPragmas(conn *sqlite.Conn, pragmas []Pragma) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma.String(), nil); err != nil {
			return engineError(err, pragma.String(), nil)
		}
	}
	return nil
}
