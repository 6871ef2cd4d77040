// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sqlrt/lib/sqlfunc"
	"github.com/bureau-foundation/sqlrt/lib/sqlvalue"
	"github.com/bureau-foundation/sqlrt/lib/version"
)

// registerFunctions installs the shell's application functions on
// every connection of the database.
func registerFunctions(registry *sqlfunc.Registry) error {
	// bureau_json renders any value as JSON text. Encoded blobs arrive
	// already decoded, so this exposes structured columns to SQL.
	err := registry.RegisterFunc("bureau_json", func(value any) (string, error) {
		encoded, err := json.Marshal(value)
		return string(encoded), err
	}, sqlfunc.Options{Deterministic: true})
	if err != nil {
		return err
	}
	return registry.RegisterFunc("bureau_version", func() string {
		return version.Info()
	}, sqlfunc.Options{})
}

// engineVersion returns the version of the linked SQLite library, or
// "" if a scratch connection cannot be opened.
func engineVersion() string {
	conn, err := sqlite.OpenConn(":memory:")
	if err != nil {
		return ""
	}
	defer conn.Close()

	var result string
	err = sqlitex.ExecuteTransient(conn, "SELECT sqlite_version()", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value, err := sqlvalue.ReadColumn(stmt, 0)
			if err != nil {
				return err
			}
			result, _ = value.(string)
			return nil
		},
	})
	if err != nil {
		return ""
	}
	return result
}
