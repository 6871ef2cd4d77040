// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool gives many goroutines safe access to one SQLite
// database.
//
// SQLite connections, and the statements compiled on them, must only
// be used by one thread at a time. A [Database] therefore holds two
// fixed pools of connections built on zombiezen.com/go/sqlite: a
// writer pool with exactly one connection and a reader pool with N
// connections restricted by query_only. Callers [Pool.Take] a
// connection, use it, and [Pool.Put] it back. The helpers
// [Pool.Query], [Pool.Transaction], [Database.Read], and
// [Database.Write] do the Take and Put on every exit path.
//
// # Statements and rows
//
// Every connection keeps a private cache of compiled statements keyed
// by SQL text, evicting the oldest once [DefaultStatementCacheSize]
// entries are held. The first row a cached statement produces fixes
// its row decoder: one reader per column, chosen from the storage
// class SQLite reports. One-column rows decode to the bare value and
// wider rows to a []any. Parameters are bound positionally through
// [sqlvalue.Codec], so BLOB columns carry raw bytes or encoded
// structured values.
//
// # Pragmas
//
// Every connection is initialized with [DefaultPragmas], merged with
// Config.Pragmas:
//
//   - cache_size=-8192: 8 MB page cache per connection.
//   - page_size=4096.
//   - journal_mode=WAL: concurrent readers and a single writer.
//   - synchronous=NORMAL: transactions survive process crashes, not
//     power loss.
//   - temp_store=MEMORY.
//   - foreign_keys=ON.
//   - busy_timeout=5000: wait up to 5 seconds for a lock held by
//     another process instead of returning SQLITE_BUSY immediately.
//   - wal_autocheckpoint=0: the WAL grows until [Database.Checkpoint]
//     runs.
//   - mmap_size=268435456: 256 MB memory-mapped I/O for reads.
//
// query_only is applied last: ON for readers, OFF for the writer.
// Both roles open read-write so maintenance pragmas keep working on
// reader connections.
//
// # Usage
//
//	db, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:    "/var/bureau/state/state.db",
//	    Readers: 8,
//	    Schema:  schema,
//	    Logger:  logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.Write(ctx, func(conn *sqlitepool.Conn) error {
//	    return conn.Exec(ctx, "INSERT INTO items (name, data) VALUES (?, ?)", name, data)
//	})
//
//	rows, err := db.Query(ctx, "SELECT name, data FROM items")
//
// Application functions are registered once through
// [Database.Functions] and reach every connection of both pools.
package sqlitepool
