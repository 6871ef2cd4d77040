// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"sync"

	"zombiezen.com/go/sqlite"
)

// pending holds the first failed call per native connection since the
// last TakeFailure. The engine binding drops the result code of an
// errored scalar call, so the statement still produces a value; the
// code stepping the statement must consult this slot to fail it.
var pending sync.Map // *sqlite.Conn -> error

// recordFailure remembers err for the connection running ctx. A
// failure already pending for that connection is kept.
func recordFailure(ctx sqlite.Context, err error) {
	conn := ctx.Conn()
	if conn == nil {
		return
	}
	pending.LoadOrStore(conn, err)
}

// TakeFailure returns and clears the first application function
// failure recorded on conn since the previous call, or nil. Code that
// steps statements on a connection with registered functions must call
// it after every Step and treat a non-nil result as the statement's
// error, because the value the engine produced for the failed call is
// not meaningful.
func TakeFailure(conn *sqlite.Conn) error {
	err, ok := pending.LoadAndDelete(conn)
	if !ok {
		return nil
	}
	return err.(error)
}
