// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
)

var databaseCounter atomic.Uint64

// DatabasePath returns a path for a new SQLite database file in the
// test's temporary directory. The file does not exist yet and is
// removed with the directory when the test completes. Successive calls
// return distinct paths.
func DatabasePath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), fmt.Sprintf("test-%d.db", databaseCounter.Add(1)))
}
