// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/sqlrt/lib/clock"
)

// Role distinguishes the writer pool from the reader pool of a
// Database.
type Role string

const (
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

// Pool is a fixed set of connections handed out one caller at a time.
// Pool is safe for concurrent use. Individual connections are not:
// each goroutine must Take its own connection and Put it back when
// done.
type Pool struct {
	role   Role
	path   string
	conns  []*Conn
	free   chan *Conn
	clock  clock.Clock
	logger *slog.Logger

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newPool(role Role, path string, conns []*Conn, clk clock.Clock, logger *slog.Logger) *Pool {
	pool := &Pool{
		role:   role,
		path:   path,
		conns:  conns,
		free:   make(chan *Conn, len(conns)),
		clock:  clk,
		logger: logger,
		closed: make(chan struct{}),
	}
	for _, conn := range conns {
		pool.free <- conn
	}
	return pool
}

// Role returns whether this is the writer or the reader pool.
func (p *Pool) Role() Role { return p.role }

// Size returns the number of connections in the pool.
func (p *Pool) Size() int { return len(p.conns) }

// Take borrows a connection from the pool. Blocks until a connection
// is available, ctx is cancelled, or the pool is closed. The caller
// MUST call Put when done with the connection, typically via defer:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*Conn, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	start := p.clock.Now()
	select {
	case conn := <-p.free:
		select {
		case <-p.closed:
			p.free <- conn
			return nil, ErrPoolClosed
		default:
		}
		conn.checkedOut.Store(true)
		CheckoutWaitSeconds.WithLabelValues(string(p.role)).Observe(clock.Since(p.clock, start).Seconds())
		return conn, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("sqlitepool: take %s connection: %w", p.role, ctx.Err())
	}
}

// Put returns a connection to the pool. Safe to call with nil (no-op).
// After Put, the caller must not use the connection. Returning a
// connection that is not checked out panics.
func (p *Pool) Put(conn *Conn) {
	if conn == nil {
		return
	}
	if !conn.checkedOut.CompareAndSwap(true, false) {
		panic("sqlitepool: connection returned to pool twice")
	}
	p.free <- conn
}

// Query takes a connection, runs one statement, and puts the
// connection back, also when the statement fails.
func (p *Pool) Query(ctx context.Context, sql string, params ...any) ([]any, error) {
	conn, err := p.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Put(conn)
	return conn.Query(ctx, sql, params...)
}

// Exec is Query discarding the rows.
func (p *Pool) Exec(ctx context.Context, sql string, params ...any) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return conn.Exec(ctx, sql, params...)
}

// Transaction takes a connection and runs fn inside a transaction on
// it. See Conn.Transaction. The connection is put back on every path,
// after COMMIT or ROLLBACK.
func (p *Pool) Transaction(ctx context.Context, mode TxMode, fn func(conn *Conn) error) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return conn.Transaction(ctx, mode, fn)
}

// EachConn calls fn with the native handle of every connection in the
// pool, including checked-out ones, waiting for each connection's
// current operation to finish.
func (p *Pool) EachConn(fn func(conn *sqlite.Conn) error) error {
	for _, conn := range p.conns {
		if err := conn.withHandle(fn); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all connections in the pool. Blocks until all borrowed
// connections are returned. After Close, Take returns ErrPoolClosed.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		var errs []error
		for range p.conns {
			conn := <-p.free
			if err := conn.close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			p.logger.Error("sqlite pool close error",
				"path", p.path,
				"role", p.role,
				"error", err,
			)
			p.closeErr = fmt.Errorf("sqlitepool: closing %s pool for %s: %w", p.role, p.path, err)
			return
		}
		p.logger.Info("sqlite pool closed", "path", p.path, "role", p.role)
	})
	return p.closeErr
}
