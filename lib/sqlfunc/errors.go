// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is returned by Update for a name with no
// registration.
var ErrNotRegistered = errors.New("sqlfunc: function not registered")

// ErrUnsupportedFlags is returned by registration when Options sets a
// flag outside SupportedFlags.
var ErrUnsupportedFlags = errors.New("flags not supported by the engine binding")

// RegistrationError reports that the engine rejected installing or
// removing a function on one of the connections. The registry is left
// unchanged for the name. Connections visited before the failing one
// keep the native change; the error is not retryable in a way that
// repairs them.
type RegistrationError struct {
	// Op is "register", "update", or "remove".
	Op string

	Name  string
	NArgs int
	Err   error
}

func (err *RegistrationError) Error() string {
	return fmt.Sprintf("sqlfunc: %s %s/%s: %v", err.Op, err.Name, formatNArgs(err.NArgs), err.Err)
}

func (err *RegistrationError) Unwrap() error { return err.Err }

// CallableError is the error a single function invocation reports to
// the engine when the Go function fails or panics. SQLite surfaces its
// message as the statement error.
type CallableError struct {
	Name string

	// NArgs is the number of arguments of the failing call.
	NArgs int

	Err error

	// Panicked is set when Err was recovered from a panic.
	Panicked bool
}

func (err *CallableError) Error() string {
	if err.Panicked {
		return fmt.Sprintf("%s(%d args) panicked: %v", err.Name, err.NArgs, err.Err)
	}
	return fmt.Sprintf("%s(%d args): %v", err.Name, err.NArgs, err.Err)
}

func (err *CallableError) Unwrap() error { return err.Err }

func wrongArgumentCount(name string) error {
	return fmt.Errorf("wrong number of arguments to function %s()", name)
}

func noSuchFunction(name string) error {
	return fmt.Errorf("no such function: %s", name)
}
