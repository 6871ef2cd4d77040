// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the SQL
// runtime and the bureau-sql command.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_SQL_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without its own section
// gets synchronous=FULL.
//
// ${HOME} and ${VAR:-default} patterns are expanded in database.path
// after loading. No other environment variables override config
// values.
//
// Key exports:
//
//   - [Config] -- master struct with Database, Codec, and Batch
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Pool] and [Config.ValueCodec] -- the sqlitepool and sqlvalue
//     settings derived from the file
package config
