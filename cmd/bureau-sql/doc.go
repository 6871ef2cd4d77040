// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-sql runs SQL against a Bureau SQLite database through the
// same connection pools, statement caches, and value codec that
// services use.
//
// The database is described by the config file named by --config or
// BUREAU_SQL_CONFIG. A single statement runs on a reader connection
// unless --write selects the writer:
//
//	bureau-sql --config state.yaml "SELECT name, data FROM items WHERE id = ?" --params '[42]'
//	bureau-sql --config state.yaml --write "DELETE FROM items WHERE expired"
//
// --params takes a JSON array, with comments and trailing commas
// allowed. Objects and arrays inside it are stored as encoded blobs.
//
// With --batch, statements are read from stdin, one per line, and
// committed through the write batcher in coalesced transactions.
//
// Rows print as an aligned table when stdout is a terminal and as
// JSON lines otherwise. Structured blobs are decoded before printing.
// SQL text can also call bureau_json(value), which renders any value,
// including an encoded blob, as JSON text.
package main
