// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	originalCommit, originalDirty, originalTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = originalCommit, originalDirty, originalTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-02-10T00:00:00Z"
	if got, want := Info(), Version+" (abc1234-dirty, 2026-02-10T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "false"
	if strings.Contains(Info(), "-dirty") {
		t.Errorf("Info() = %q, clean build marked dirty", Info())
	}
}

func TestFullIncludesEngineVersion(t *testing.T) {
	if strings.Contains(Full(""), "SQLite") {
		t.Errorf("Full(\"\") mentions SQLite: %q", Full(""))
	}
	if !strings.Contains(Full("3.51.0"), "SQLite: 3.51.0") {
		t.Errorf("Full missing engine version: %q", Full("3.51.0"))
	}

	var buffer bytes.Buffer
	if err := Print(&buffer, "bureau-sql", "3.51.0"); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.HasPrefix(buffer.String(), "bureau-sql "+Version) {
		t.Errorf("Print wrote %q", buffer.String())
	}
}
