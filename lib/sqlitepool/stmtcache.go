// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"errors"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
)

// DefaultStatementCacheSize is the per-connection statement cache
// capacity used when Config.StatementCacheSize is zero.
const DefaultStatementCacheSize = 512

// errTrailingStatement is wrapped into an EngineError when a query
// holds more than one statement.
var errTrailingStatement = errors.New("query contains more than one statement; use ExecScript")

var errEmptyStatement = errors.New("empty query")

// cacheEntry is one compiled statement and its memoized row decoder.
type cacheEntry struct {
	sql     string
	stmt    *sqlite.Stmt
	decoder *rowDecoder

	// writes is set for INSERT, UPDATE, DELETE, REPLACE, and WITH
	// statements, which run inside a statement savepoint.
	writes bool
}

// stmtCache maps SQL text to compiled statements for one connection,
// evicting the oldest entry once capacity is reached. It is only
// touched by the goroutine holding the connection.
type stmtCache struct {
	capacity int
	entries  map[string]*cacheEntry

	// order holds the cached SQL texts, oldest first.
	order []string

	logger *slog.Logger
}

func newStmtCache(capacity int, logger *slog.Logger) *stmtCache {
	if capacity <= 0 {
		capacity = DefaultStatementCacheSize
	}
	return &stmtCache{
		capacity: capacity,
		entries:  make(map[string]*cacheEntry, capacity),
		logger:   logger,
	}
}

// lookupOrPrepare returns the entry for sql, compiling it on a miss
// and evicting the oldest entry when the cache is full. A failed
// prepare leaves the cache unchanged.
func (c *stmtCache) lookupOrPrepare(conn *sqlite.Conn, sql string) (*cacheEntry, error) {
	if entry, ok := c.entries[sql]; ok {
		StatementCacheTotal.WithLabelValues("hit").Inc()
		return entry, nil
	}

	StatementCacheTotal.WithLabelValues("miss").Inc()
	stmt, err := prepare(conn, sql)
	if err != nil {
		return nil, err
	}
	for len(c.order) >= c.capacity {
		c.evictOldest()
	}
	entry := &cacheEntry{sql: sql, stmt: stmt, writes: writesRows(sql)}
	c.entries[sql] = entry
	c.order = append(c.order, sql)
	return entry, nil
}

func (c *stmtCache) evictOldest() {
	oldest := c.order[0]
	c.order = c.order[1:]
	entry := c.entries[oldest]
	delete(c.entries, oldest)

	StatementCacheTotal.WithLabelValues("evict").Inc()
	c.logger.Debug("statement evicted", "sql", oldest)
	entry.stmt.Finalize()
}

// len returns the number of cached statements.
func (c *stmtCache) len() int {
	return len(c.order)
}

// close finalizes every cached statement.
func (c *stmtCache) close() error {
	var errs []error
	for _, sql := range c.order {
		if err := c.entries[sql].stmt.Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	c.entries = map[string]*cacheEntry{}
	c.order = nil
	return errors.Join(errs...)
}

// prepare compiles a single statement. SQL with a second statement
// after the first is rejected; trailing semicolons and comments are
// not a statement.
func prepare(conn *sqlite.Conn, sql string) (*sqlite.Stmt, error) {
	if skipTrivia(sql) == "" {
		return nil, errEmptyStatement
	}
	stmt, trailingBytes, err := conn.PrepareTransient(sql)
	if err != nil {
		return nil, err
	}
	if trailingBytes > 0 && skipTrivia(sql[len(sql)-trailingBytes:]) != "" {
		stmt.Finalize()
		return nil, errTrailingStatement
	}
	return stmt, nil
}

// skipTrivia returns sql without its leading whitespace, comments, and
// empty statements. An unterminated block comment runs to the end.
func skipTrivia(sql string) string {
	for {
		sql = strings.TrimLeft(sql, " \t\r\n\f;")
		switch {
		case strings.HasPrefix(sql, "--"):
			end := strings.IndexByte(sql, '\n')
			if end < 0 {
				return ""
			}
			sql = sql[end+1:]
		case strings.HasPrefix(sql, "/*"):
			end := strings.Index(sql[2:], "*/")
			if end < 0 {
				return ""
			}
			sql = sql[2+end+2:]
		default:
			return sql
		}
	}
}

// writesRows reports whether sql starts with a keyword that can modify
// rows.
func writesRows(sql string) bool {
	sql = skipTrivia(sql)
	end := strings.IndexFunc(sql, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z')
	})
	if end >= 0 {
		sql = sql[:end]
	}
	switch strings.ToUpper(sql) {
	case "INSERT", "UPDATE", "DELETE", "REPLACE", "WITH":
		return true
	}
	return false
}
