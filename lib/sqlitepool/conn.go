// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sqlrt/lib/sqlfunc"
	"github.com/bureau-foundation/sqlrt/lib/sqlvalue"
)

// TxMode selects the BEGIN variant of a transaction.
type TxMode int

const (
	// Deferred takes locks on first use. Used for read transactions.
	Deferred TxMode = iota

	// Immediate takes the write lock at BEGIN. Used for write
	// transactions so lock contention surfaces before any work runs.
	Immediate
)

func (mode TxMode) begin() string {
	if mode == Immediate {
		return "BEGIN IMMEDIATE"
	}
	return "BEGIN DEFERRED"
}

func (mode TxMode) String() string {
	if mode == Immediate {
		return "immediate"
	}
	return "deferred"
}

// Conn is one SQLite connection with its private statement cache. A
// Conn is obtained from Pool.Take and must only be used by the
// goroutine holding it until it is returned with Pool.Put.
//
// Every operation also takes a per-connection mutex, so accidental
// concurrent use blocks instead of corrupting the native handle. The
// mutex is held for the duration of one operation; callbacks passed to
// QueryFunc must not use the same Conn. Application functions run
// under the same mutex, so they must neither use the Conn nor change
// the function registry (Binding.Set included).
//
// A statement that can modify rows runs inside its own savepoint on a
// writable connection. When it fails, including when an application
// function it calls fails, its partial changes are rolled back while
// an enclosing Transaction stays open.
type Conn struct {
	mu       sync.Mutex
	handle   *sqlite.Conn
	cache    *stmtCache
	codec    *sqlvalue.Codec
	readOnly bool
	closed   bool
	logger   *slog.Logger

	// checkedOut guards against returning a connection twice.
	checkedOut atomic.Bool
}

// ReadOnly reports whether the connection belongs to a reader pool
// and has query_only set.
func (c *Conn) ReadOnly() bool {
	return c.readOnly
}

// Query runs one statement and returns its rows. A one-column row is
// the bare value; a wider row is a []any. A statement without result
// columns returns an empty result.
func (c *Conn) Query(ctx context.Context, sql string, params ...any) ([]any, error) {
	var rows []any
	err := c.QueryFunc(ctx, sql, params, func(row any) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryValue runs one statement and unwraps the result: nil for no
// rows, the row itself for exactly one row, and the []any of rows
// otherwise.
func (c *Conn) QueryValue(ctx context.Context, sql string, params ...any) (any, error) {
	rows, err := c.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return Unwrap(rows), nil
}

// Exec runs one statement and discards any rows.
func (c *Conn) Exec(ctx context.Context, sql string, params ...any) error {
	return c.QueryFunc(ctx, sql, params, nil)
}

// QueryFunc runs one statement and calls fn for each row in order. If
// fn returns an error, stepping stops and the error is returned. fn
// may be nil.
func (c *Conn) QueryFunc(ctx context.Context, sql string, params []any, fn func(row any) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entry, err := c.cache.lookupOrPrepare(c.handle, sql)
	if err != nil {
		return engineError(err, sql, params)
	}
	if c.readOnly || !entry.writes {
		return c.interruptible(ctx, func() error {
			return c.execute(entry, params, fn)
		})
	}
	return c.savepoint(func() error {
		return c.interruptible(ctx, func() error {
			return c.execute(entry, params, fn)
		})
	})
}

// interruptible runs fn with ctx wired to the engine's interrupt.
func (c *Conn) interruptible(ctx context.Context, fn func() error) error {
	defer c.handle.SetInterrupt(c.handle.SetInterrupt(ctx.Done()))
	return fn()
}

const (
	savepointBegin    = "SAVEPOINT sqlrt_statement"
	savepointRollback = "ROLLBACK TO sqlrt_statement"
	savepointRelease  = "RELEASE sqlrt_statement"
)

// savepoint runs fn inside a savepoint so a failed statement leaves no
// partial changes, including the rows an application function failed
// on. It works both in autocommit mode and inside Transaction. The
// control statements bypass the statement cache and run without an
// interrupt, so cleanup still happens after ctx is cancelled.
func (c *Conn) savepoint(fn func() error) error {
	if err := sqlitex.Execute(c.handle, savepointBegin, nil); err != nil {
		return engineError(err, savepointBegin, nil)
	}
	err := fn()
	if err != nil {
		// An engine error can end the whole transaction, savepoint
		// included.
		if c.handle.AutocommitEnabled() {
			return err
		}
		if rollbackErr := sqlitex.Execute(c.handle, savepointRollback, nil); rollbackErr != nil {
			err = errors.Join(err, engineError(rollbackErr, savepointRollback, nil))
		}
	}
	if releaseErr := sqlitex.Execute(c.handle, savepointRelease, nil); releaseErr != nil {
		return errors.Join(err, engineError(releaseErr, savepointRelease, nil))
	}
	return err
}

// ColumnNames compiles sql into the statement cache, without running
// it, and returns the names of its result columns. A statement that
// returns no rows has none.
func (c *Conn) ColumnNames(sql string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrPoolClosed
	}
	entry, err := c.cache.lookupOrPrepare(c.handle, sql)
	if err != nil {
		return nil, engineError(err, sql, nil)
	}
	names := make([]string, entry.stmt.ColumnCount())
	for index := range names {
		names[index] = entry.stmt.ColumnName(index)
	}
	return names, nil
}

// execute binds params and steps entry's statement. The statement is
// reset and its bindings cleared on every path.
func (c *Conn) execute(entry *cacheEntry, params []any, fn func(row any) error) error {
	stmt := entry.stmt
	defer func() {
		stmt.Reset()
		stmt.ClearBindings()
	}()

	if count := stmt.BindParamCount(); len(params) != count {
		return fmt.Errorf("sqlitepool: %q takes %d parameters, got %d", entry.sql, count, len(params))
	}
	if err := c.codec.BindAll(stmt, params); err != nil {
		return fmt.Errorf("sqlitepool: %q: %w", entry.sql, err)
	}

	for {
		hasRow, err := stmt.Step()
		if failure := sqlfunc.TakeFailure(c.handle); failure != nil {
			return callableError(failure, entry.sql, params)
		}
		if err != nil {
			return engineError(err, entry.sql, params)
		}
		if !hasRow {
			return nil
		}
		if fn == nil {
			continue
		}
		row, err := entry.decoderFor(stmt).decode(stmt)
		if err != nil {
			return fmt.Errorf("sqlitepool: %q: %w", entry.sql, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// ExecScript runs a sequence of statements separated by semicolons,
// such as a schema definition, inside one savepoint. Script statements
// are not cached. A failed application function call anywhere in the
// script rolls the whole script back.
func (c *Conn) ExecScript(ctx context.Context, script string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	run := func() error {
		return c.interruptible(ctx, func() error {
			err := sqlitex.ExecuteScript(c.handle, script, nil)
			if failure := sqlfunc.TakeFailure(c.handle); failure != nil {
				return callableError(failure, script, nil)
			}
			return engineError(err, script, nil)
		})
	}
	if c.readOnly {
		return run()
	}
	return c.savepoint(run)
}

// Transaction runs fn between BEGIN and COMMIT. If fn returns an error
// or panics, or COMMIT fails, the transaction is rolled back before the
// error is returned or the panic continues.
func (c *Conn) Transaction(ctx context.Context, mode TxMode, fn func(conn *Conn) error) (err error) {
	if err := c.Exec(ctx, mode.begin()); err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		recovered := recover()
		// ROLLBACK must run even when ctx is what failed the
		// transaction. SQLite may already have rolled back on its own.
		if rollbackErr := c.rollback(); rollbackErr != nil {
			c.logger.Error("rollback failed", "error", rollbackErr)
			err = errors.Join(err, rollbackErr)
		}
		if recovered != nil {
			panic(recovered)
		}
	}()

	if err = fn(c); err != nil {
		return err
	}
	if err = c.Exec(ctx, "COMMIT"); err != nil {
		return err
	}
	committed = true
	return nil
}

func (c *Conn) rollback() error {
	c.mu.Lock()
	active := !c.closed && !c.handle.AutocommitEnabled()
	c.mu.Unlock()
	if !active {
		return nil
	}
	return c.Exec(context.Background(), "ROLLBACK")
}

// Changes returns the number of rows modified by the most recent
// INSERT, UPDATE, or DELETE on this connection.
func (c *Conn) Changes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle.Changes()
}

// LastInsertRowID returns the rowid of the most recent successful
// INSERT on this connection.
func (c *Conn) LastInsertRowID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle.LastInsertRowID()
}

// CachedStatements returns the number of statements held by the
// connection's statement cache.
func (c *Conn) CachedStatements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.len()
}

// withHandle runs fn with exclusive access to the native handle. It is
// how function registrations reach every connection.
func (c *Conn) withHandle(fn func(conn *sqlite.Conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPoolClosed
	}
	return fn(c.handle)
}

// close finalizes cached statements and closes the native handle.
func (c *Conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	sqlfunc.TakeFailure(c.handle)
	return errors.Join(c.cache.close(), c.handle.Close())
}

// Unwrap collapses a query result: nil for no rows, the only row for
// one row, and rows itself otherwise.
func Unwrap(rows []any) any {
	switch len(rows) {
	case 0:
		return nil
	case 1:
		return rows[0]
	default:
		return rows
	}
}
