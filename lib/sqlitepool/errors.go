// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
)

// ErrPoolClosed is returned by Take and by connection operations after
// the pool has been closed.
var ErrPoolClosed = errors.New("sqlitepool: pool closed")

// EngineError is a failure reported by SQLite while preparing or
// stepping a statement.
type EngineError struct {
	// Code is the extended result code.
	Code sqlite.ResultCode

	// Name is the symbolic name of Code, such as
	// "SQLITE_CONSTRAINT_UNIQUE".
	Name string

	Message string

	// SQL and Params identify the statement that failed. Params is
	// nil for scripts and transaction control statements.
	SQL    string
	Params []any

	Err error
}

func (err *EngineError) Error() string {
	return fmt.Sprintf("sqlitepool: %s: %s (sql: %q)", err.Name, err.Message, err.SQL)
}

func (err *EngineError) Unwrap() error { return err.Err }

// IsBusy reports whether err is an engine error caused by lock
// contention that outlasted busy_timeout.
func IsBusy(err error) bool {
	return hasPrimaryCode(err, sqlite.ResultBusy) || hasPrimaryCode(err, sqlite.ResultLocked)
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	return hasPrimaryCode(err, sqlite.ResultConstraint)
}

// IsInterrupted reports whether err is an engine error caused by a
// cancelled context.
func IsInterrupted(err error) bool {
	return hasPrimaryCode(err, sqlite.ResultInterrupt)
}

func hasPrimaryCode(err error, code sqlite.ResultCode) bool {
	var engineError *EngineError
	if !errors.As(err, &engineError) {
		return false
	}
	return engineError.Code.ToPrimary() == code
}

// engineError wraps a native error with the statement that produced
// it. An error that is already an *EngineError is returned unchanged.
func engineError(err error, sql string, params []any) error {
	if err == nil {
		return nil
	}
	var existing *EngineError
	if errors.As(err, &existing) {
		return err
	}
	code := sqlite.ErrCode(err)
	EngineErrorsTotal.WithLabelValues(code.ToPrimary().String()).Inc()
	return &EngineError{
		Code:    code,
		Name:    code.String(),
		Message: err.Error(),
		SQL:     sql,
		Params:  params,
		Err:     err,
	}
}

// callableError reports a failed application function call as the
// engine error of the statement that made it. The *sqlfunc.CallableError
// stays reachable through errors.As.
func callableError(failure error, sql string, params []any) error {
	EngineErrorsTotal.WithLabelValues(sqlite.ResultError.String()).Inc()
	return &EngineError{
		Code:    sqlite.ResultError,
		Name:    sqlite.ResultError.String(),
		Message: failure.Error(),
		SQL:     sql,
		Params:  params,
		Err:     failure,
	}
}
