// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestReport(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		output string
	}{
		{"nil", nil, 0, ""},
		{"plain", errors.New("disk full"), 1, "error: disk full\n"},
		{"usage", Usage("unexpected argument: %s", "x"), 2, "error: unexpected argument: x\n"},
		{"wrapped", fmt.Errorf("running: %w", &ExitError{Code: 3}), 3, "error: running: exit code 3\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buffer bytes.Buffer
			if code := Report(&buffer, test.err); code != test.code {
				t.Errorf("code = %d, want %d", code, test.code)
			}
			if buffer.String() != test.output {
				t.Errorf("output = %q, want %q", buffer.String(), test.output)
			}
		})
	}
}
