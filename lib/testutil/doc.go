// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [RequireNoReceive] wrap the
// select-with-timeout pattern so individual tests never call
// time.After themselves. They are the only place in the test suite
// where real wall-clock timeouts are used; everything else takes a
// clock.FakeClock.
//
// [DatabasePath] returns a fresh database file path inside the test's
// temporary directory.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no dependencies on other packages of this module.
package testutil
