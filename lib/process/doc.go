// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint helpers of bureau-sql.
// These centralize the raw I/O that happens before the structured
// logger exists or after main has given up:
//
//   - Fatal error reporting to stderr.
//   - Process exit, honoring exit codes carried by errors.
//
// Everything else writes through slog or the command's output
// formatter.
package process
