// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/sqlrt/lib/clock"
	"github.com/bureau-foundation/sqlrt/lib/sqlfunc"
	"github.com/bureau-foundation/sqlrt/lib/sqlvalue"
)

// DefaultReaders is the reader pool size used when Config.Readers is
// zero.
const DefaultReaders = 4

// Config holds the parameters for opening a Database. Path is
// required; all other fields have defaults.
type Config struct {
	// Path is the SQLite database file, or a "file:" URI. The parent
	// directory must exist. The file is created if it does not exist.
	// A plain ":memory:" path is rejected because every connection
	// would open a separate database.
	Path string

	// Readers is the number of reader connections. If zero or
	// negative, defaults to DefaultReaders. The writer pool always
	// holds exactly one connection.
	Readers int

	// StatementCacheSize is the per-connection statement cache
	// capacity. Defaults to DefaultStatementCacheSize.
	StatementCacheSize int

	// Pragmas overrides or extends DefaultPragmas, keyed by pragma
	// name. query_only cannot be set here.
	Pragmas map[string]string

	// Schema, if set, is run as a script on the writer connection
	// before any reader connection opens.
	Schema string

	// OnConnect is called once per connection after pragmas are
	// applied and Schema has run. Reader connections are already
	// query_only when OnConnect sees them.
	OnConnect func(conn *Conn) error

	// Codec binds parameters and encodes function results. Defaults
	// to sqlvalue.Default().
	Codec *sqlvalue.Codec

	// Clock measures checkout waits. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives operational messages (open, close, function
	// registration, pragma errors). If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Database is a SQLite database served by a one-connection writer pool
// and a reader pool, sharing one application function registry.
type Database struct {
	path      string
	writer    *Pool
	readers   *Pool
	functions *sqlfunc.Registry
	logger    *slog.Logger
}

// Open opens every connection of the database, applying pragmas to
// each. The writer connection is opened first so the journal mode is
// settled before the reader connections open in parallel.
//
// The caller must call Close when the database is no longer needed.
func Open(cfg Config) (*Database, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}
	if isPrivateMemory(cfg.Path) {
		return nil, fmt.Errorf("sqlitepool: %s: each connection would open a separate in-memory database; use a file or a shared-cache URI", cfg.Path)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	codec := cfg.Codec
	if codec == nil {
		codec = sqlvalue.Default()
	}
	readerCount := cfg.Readers
	if readerCount <= 0 {
		readerCount = DefaultReaders
	}

	writerPragmas, err := pragmaList(cfg.Pragmas, false)
	if err != nil {
		return nil, err
	}
	readerPragmas, err := pragmaList(cfg.Pragmas, true)
	if err != nil {
		return nil, err
	}

	opener := connOpener{
		path:      cfg.Path,
		cacheSize: cfg.StatementCacheSize,
		codec:     codec,
		onConnect: cfg.OnConnect,
		logger:    logger,
	}

	writer, err := opener.open(writerPragmas, false, cfg.Schema)
	if err != nil {
		return nil, err
	}

	readers := make([]*Conn, readerCount)
	var group errgroup.Group
	for index := range readers {
		group.Go(func() error {
			conn, err := opener.open(readerPragmas, true, "")
			readers[index] = conn
			return err
		})
	}
	if err := group.Wait(); err != nil {
		for _, conn := range append(readers, writer) {
			if conn != nil {
				conn.close()
			}
		}
		return nil, err
	}

	db := &Database{
		path:    cfg.Path,
		writer:  newPool(RoleWriter, cfg.Path, []*Conn{writer}, clk, logger),
		readers: newPool(RoleReader, cfg.Path, readers, clk, logger),
		logger:  logger,
	}
	db.functions = sqlfunc.NewRegistry(sqlfunc.Config{
		Connections: db,
		Codec:       codec,
		Logger:      logger,
	})

	logger.Info("sqlite database opened",
		"path", cfg.Path,
		"readers", readerCount,
		"statement_cache_size", writer.cache.capacity,
	)
	return db, nil
}

// isPrivateMemory reports whether path names an in-memory database
// that is not shared between connections.
func isPrivateMemory(path string) bool {
	if path == ":memory:" {
		return true
	}
	if strings.HasPrefix(path, "file:") {
		inMemory := strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
		return inMemory && !strings.Contains(path, "cache=shared")
	}
	return false
}

// connOpener holds what every connection of a database is opened
// with.
type connOpener struct {
	path      string
	cacheSize int
	codec     *sqlvalue.Codec
	onConnect func(conn *Conn) error
	logger    *slog.Logger
}

// open opens one connection, applies pragmas, and runs schema and the
// OnConnect hook. Both roles open read-write; readers are restricted by
// query_only.
func (o connOpener) open(pragmas []Pragma, readOnly bool, schema string) (*Conn, error) {
	handle, err := sqlite.OpenConn(o.path, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenURI)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", o.path, err)
	}
	conn := &Conn{
		handle:   handle,
		cache:    newStmtCache(o.cacheSize, o.logger),
		codec:    o.codec,
		readOnly: readOnly,
		logger:   o.logger,
	}
	if err := o.prepare(conn, pragmas, schema); err != nil {
		conn.close()
		return nil, err
	}
	return conn, nil
}

func (o connOpener) prepare(conn *Conn, pragmas []Pragma, schema string) error {
	if err := applyPragmas(conn.handle, pragmas); err != nil {
		o.logger.Error("applying pragmas failed", "path", o.path, "error", err)
		return err
	}
	ctx := context.Background()
	if schema != "" {
		if err := conn.ExecScript(ctx, schema); err != nil {
			return fmt.Errorf("sqlitepool: schema: %w", err)
		}
	}
	if o.onConnect != nil {
		if err := o.onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}
	return nil
}

// Writer returns the one-connection writer pool.
func (db *Database) Writer() *Pool { return db.writer }

// Readers returns the reader pool.
func (db *Database) Readers() *Pool { return db.readers }

// Functions returns the application function registry. Registrations
// reach every connection of both pools.
func (db *Database) Functions() *sqlfunc.Registry { return db.functions }

// EachConn calls fn with every native connection, writer first. It
// implements sqlfunc.ConnectionSet.
func (db *Database) EachConn(fn func(conn *sqlite.Conn) error) error {
	if err := db.writer.EachConn(fn); err != nil {
		return err
	}
	return db.readers.EachConn(fn)
}

// Read runs fn in a deferred transaction on a reader connection.
func (db *Database) Read(ctx context.Context, fn func(conn *Conn) error) error {
	return db.readers.Transaction(ctx, Deferred, fn)
}

// Write runs fn in an immediate transaction on the writer connection.
func (db *Database) Write(ctx context.Context, fn func(conn *Conn) error) error {
	return db.writer.Transaction(ctx, Immediate, fn)
}

// Query runs one read statement on a reader connection.
func (db *Database) Query(ctx context.Context, sql string, params ...any) ([]any, error) {
	return db.readers.Query(ctx, sql, params...)
}

// QueryValue is Query with the result collapsed by Unwrap.
func (db *Database) QueryValue(ctx context.Context, sql string, params ...any) (any, error) {
	rows, err := db.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return Unwrap(rows), nil
}

// Exec runs one statement on the writer connection.
func (db *Database) Exec(ctx context.Context, sql string, params ...any) error {
	return db.writer.Exec(ctx, sql, params...)
}

// Checkpoint copies the write-ahead log into the database file and
// truncates it. Automatic checkpoints are disabled by default, so a
// long-running writer should call this periodically.
func (db *Database) Checkpoint(ctx context.Context) error {
	conn, err := db.writer.Take(ctx)
	if err != nil {
		return err
	}
	defer db.writer.Put(conn)
	return conn.Exec(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
}

// Close closes the reader pool and then the writer pool, each waiting
// for its borrowed connections to be returned.
func (db *Database) Close() error {
	err := errors.Join(db.readers.Close(), db.writer.Close())
	if err == nil {
		db.logger.Info("sqlite database closed", "path", db.path)
	}
	return err
}
