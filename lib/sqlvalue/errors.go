// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlvalue

import (
	"errors"
	"fmt"
)

// ProtocolError reports data that does not follow the blob envelope
// format or a result shape the decoder cannot handle.
type ProtocolError struct {
	// Reason describes what was malformed.
	Reason string

	// Err is the underlying decode or decompression failure, if any.
	Err error
}

func (err *ProtocolError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("sqlvalue: protocol error: %s: %v", err.Reason, err.Err)
	}
	return "sqlvalue: protocol error: " + err.Reason
}

func (err *ProtocolError) Unwrap() error { return err.Err }

// IsProtocolError reports whether err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var protocolError *ProtocolError
	return errors.As(err, &protocolError)
}

func protocolErrorf(cause error, format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...), Err: cause}
}
