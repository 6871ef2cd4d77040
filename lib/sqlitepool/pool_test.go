// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/sqlrt/lib/sqlfunc"
	"github.com/bureau-foundation/sqlrt/lib/sqlitepool"
	"github.com/bureau-foundation/sqlrt/lib/testutil"
)

const numbersSchema = `
	CREATE TABLE IF NOT EXISTS numbers (value INTEGER NOT NULL);
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		data BLOB
	);
`

func TestOpenAppliesPragmas(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 2})
	ctx := context.Background()

	writerPragmas := map[string]any{
		"journal_mode":       "wal",
		"synchronous":        int64(1),
		"foreign_keys":       int64(1),
		"busy_timeout":       int64(5000),
		"wal_autocheckpoint": int64(0),
		"query_only":         int64(0),
	}
	for pragma, want := range writerPragmas {
		got, err := queryValue(ctx, db.Writer(), "PRAGMA "+pragma)
		if err != nil {
			t.Fatalf("writer PRAGMA %s: %v", pragma, err)
		}
		if got != want {
			t.Errorf("writer %s = %v, want %v", pragma, got, want)
		}
	}

	got, err := db.QueryValue(ctx, "PRAGMA query_only")
	if err != nil {
		t.Fatalf("reader PRAGMA query_only: %v", err)
	}
	if got != int64(1) {
		t.Errorf("reader query_only = %v, want 1", got)
	}
}

func TestPragmaOverrides(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{
		Readers: 1,
		Pragmas: map[string]string{"busy_timeout": "1000", "cell_size_check": "ON"},
	})
	got, err := queryValue(context.Background(), db.Writer(), "PRAGMA busy_timeout")
	if err != nil || got != int64(1000) {
		t.Errorf("busy_timeout = %v, %v; want 1000", got, err)
	}

	rejected := []map[string]string{
		{"query_only": "OFF"},
		{"busy_timeout": "1; DROP TABLE numbers"},
		{"Journal Mode": "WAL"},
	}
	for _, pragmas := range rejected {
		_, err := sqlitepool.Open(sqlitepool.Config{Path: testutil.DatabasePath(t), Pragmas: pragmas})
		if err == nil {
			t.Errorf("Open accepted pragmas %v", pragmas)
		}
	}
}

func TestOpenRejectsPaths(t *testing.T) {
	for _, path := range []string{"", ":memory:", "file::memory:", "file:test?mode=memory"} {
		if _, err := sqlitepool.Open(sqlitepool.Config{Path: path}); err == nil {
			t.Errorf("Open(%q) succeeded", path)
		}
	}
}

func TestSchemaAndOnConnect(t *testing.T) {
	var mu sync.Mutex
	roles := map[bool]int{}
	db := openTestDatabase(t, sqlitepool.Config{
		Readers: 3,
		OnConnect: func(conn *sqlitepool.Conn) error {
			mu.Lock()
			defer mu.Unlock()
			roles[conn.ReadOnly()]++
			return nil
		},
	})
	if roles[false] != 1 || roles[true] != 3 {
		t.Errorf("OnConnect calls = %v, want 1 writer and 3 readers", roles)
	}
	if db.Writer().Size() != 1 || db.Readers().Size() != 3 {
		t.Errorf("pool sizes = %d/%d, want 1/3", db.Writer().Size(), db.Readers().Size())
	}

	// The schema exists for every reader.
	if _, err := db.Query(context.Background(), "SELECT count(*) FROM numbers"); err != nil {
		t.Errorf("reader cannot see schema: %v", err)
	}

	_, err := sqlitepool.Open(sqlitepool.Config{
		Path:      testutil.DatabasePath(t),
		OnConnect: func(*sqlitepool.Conn) error { return errors.New("refused") },
	})
	if err == nil {
		t.Error("Open succeeded although OnConnect failed")
	}
}

func TestReadersCannotWrite(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	_, err := db.Query(context.Background(), "INSERT INTO numbers (value) VALUES (1)")
	var engineError *sqlitepool.EngineError
	if !errors.As(err, &engineError) {
		t.Fatalf("error = %v, want EngineError", err)
	}
	if engineError.SQL != "INSERT INTO numbers (value) VALUES (1)" {
		t.Errorf("SQL = %q", engineError.SQL)
	}
}

func TestQueryResultShapes(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	ctx := context.Background()
	if err := db.Exec(ctx, "INSERT INTO numbers (value) VALUES (1), (2)"); err != nil {
		t.Fatalf("INSERT: %v", err)
	}

	tests := []struct {
		sql  string
		want any
	}{
		{"SELECT value FROM numbers WHERE value > 5", nil},
		{"SELECT value FROM numbers WHERE value = 1", int64(1)},
		{"SELECT value, value * 2.5, 'x' FROM numbers WHERE value = 2", []any{int64(2), 5.0, "x"}},
		{"SELECT value FROM numbers ORDER BY value", []any{int64(1), int64(2)}},
		{"SELECT value, NULL FROM numbers ORDER BY value", []any{[]any{int64(1), nil}, []any{int64(2), nil}}},
	}
	for _, test := range tests {
		got, err := db.QueryValue(ctx, test.sql)
		if err != nil {
			t.Fatalf("%s: %v", test.sql, err)
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("%s = %#v, want %#v", test.sql, got, test.want)
		}
	}

	// DDL and DML produce an empty result rather than an error.
	rows, err := db.Writer().Query(ctx, "CREATE TABLE extra (x)")
	if err != nil || len(rows) != 0 {
		t.Errorf("CREATE = %v, %v; want empty result", rows, err)
	}
}

func TestBlobColumns(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	ctx := context.Background()

	structured := map[string]any{"name": "test", "count": int64(5)}
	err := db.Write(ctx, func(conn *sqlitepool.Conn) error {
		if err := conn.Exec(ctx, "INSERT INTO items (name, data) VALUES (?, ?)", "raw", []byte{1, 2, 3}); err != nil {
			return err
		}
		return conn.Exec(ctx, "INSERT INTO items (name, data) VALUES (?, ?)", "structured", structured)
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := db.QueryValue(ctx, "SELECT data FROM items WHERE name = ?", "raw")
	if err != nil || !reflect.DeepEqual(raw, []byte{1, 2, 3}) {
		t.Errorf("raw = %#v, %v; want [1 2 3]", raw, err)
	}
	decoded, err := db.QueryValue(ctx, "SELECT data FROM items WHERE name = ?", "structured")
	if err != nil || !reflect.DeepEqual(decoded, structured) {
		t.Errorf("structured = %#v, %v; want %#v", decoded, err, structured)
	}
}

func TestFunctionsReachWriterAndReaders(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 2})
	ctx := context.Background()

	err := db.Functions().RegisterFunc("double", func(v int64) int64 { return 2 * v }, sqlfunc.Options{Deterministic: true})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	fromWriter, err := queryValue(ctx, db.Writer(), "SELECT double(5)")
	if err != nil || fromWriter != int64(10) {
		t.Errorf("writer double(5) = %v, %v", fromWriter, err)
	}
	for range db.Readers().Size() {
		fromReader, err := db.QueryValue(ctx, "SELECT double(5)")
		if err != nil || fromReader != int64(10) {
			t.Errorf("reader double(5) = %v, %v", fromReader, err)
		}
	}

	twiddle := func(data map[string]any) map[string]any {
		data["twiddle"] = true
		return data
	}
	if err := db.Functions().RegisterFunc("twiddle", twiddle, sqlfunc.Options{}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	err = db.Exec(ctx, "INSERT INTO items (name, data) VALUES (?, ?)", "doc", map[string]any{"name": "test", "count": 5})
	if err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	got, err := db.QueryValue(ctx, "SELECT twiddle(data) FROM items WHERE name = 'doc'")
	want := map[string]any{"name": "test", "count": int64(5), "twiddle": true}
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Errorf("twiddle = %#v, %v; want %#v", got, err, want)
	}
}

func TestConcurrentReads(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 3})
	ctx := context.Background()
	if err := db.Exec(ctx, "INSERT INTO numbers (value) VALUES (1), (2), (3), (4), (5)"); err != nil {
		t.Fatalf("INSERT: %v", err)
	}

	// More goroutines than reader connections.
	const goroutineCount = 12
	const queriesPerGoroutine = 20
	var waitGroup sync.WaitGroup
	errs := make(chan error, goroutineCount)

	for index := range goroutineCount {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for query := range queriesPerGoroutine {
				offset := int64(index*queriesPerGoroutine + query)
				sum, err := db.QueryValue(ctx, "SELECT sum(value) + ? FROM numbers", offset)
				if err != nil {
					errs <- err
					return
				}
				if sum != 15+offset {
					errs <- fmt.Errorf("sum = %v, want %d", sum, 15+offset)
					return
				}
			}
		}()
	}

	waitGroup.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestReadersDoNotSeeUncommittedWrites(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	ctx := context.Background()

	err := db.Write(ctx, func(conn *sqlitepool.Conn) error {
		if err := conn.Exec(ctx, "INSERT INTO numbers (value) VALUES (42)"); err != nil {
			return err
		}
		count, err := db.QueryValue(ctx, "SELECT count(*) FROM numbers")
		if err != nil {
			return err
		}
		if count != int64(0) {
			return fmt.Errorf("reader saw %v rows inside the write transaction", count)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	count, err := db.QueryValue(ctx, "SELECT count(*) FROM numbers")
	if err != nil || count != int64(1) {
		t.Errorf("count after commit = %v, %v; want 1", count, err)
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	ctx := context.Background()
	if err := db.Exec(ctx, "INSERT INTO items (name) VALUES ('existing')"); err != nil {
		t.Fatalf("INSERT: %v", err)
	}

	// Engine failure partway.
	err := db.Write(ctx, func(conn *sqlitepool.Conn) error {
		if err := conn.Exec(ctx, "INSERT INTO items (name) VALUES ('new')"); err != nil {
			return err
		}
		return conn.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "existing")
	})
	if !sqlitepool.IsConstraint(err) {
		t.Fatalf("error = %v, want a constraint violation", err)
	}
	var engineError *sqlitepool.EngineError
	if errors.As(err, &engineError) && !reflect.DeepEqual(engineError.Params, []any{"existing"}) {
		t.Errorf("Params = %v", engineError.Params)
	}

	// Host failure partway.
	failure := errors.New("host failure")
	err = db.Write(ctx, func(conn *sqlitepool.Conn) error {
		if err := conn.Exec(ctx, "INSERT INTO items (name) VALUES ('other')"); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("error = %v, want %v", err, failure)
	}

	// Panic partway.
	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic did not propagate")
			}
		}()
		db.Write(ctx, func(conn *sqlitepool.Conn) error {
			if err := conn.Exec(ctx, "INSERT INTO items (name) VALUES ('panicked')"); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	names, err := db.Query(ctx, "SELECT name FROM items ORDER BY name")
	if err != nil || !reflect.DeepEqual(names, []any{"existing"}) {
		t.Errorf("names = %v, %v; want only the original row", names, err)
	}

	// The writer connection was returned and is usable.
	err = db.Write(ctx, func(conn *sqlitepool.Conn) error {
		return conn.Exec(ctx, "INSERT INTO items (name) VALUES ('after')")
	})
	if err != nil {
		t.Fatalf("Write after failures: %v", err)
	}
}

func TestFailedFunctionCallFailsStatement(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	ctx := context.Background()
	functions := db.Functions()
	if err := functions.RegisterFunc("fail", func(message string) (string, error) {
		return "", errors.New(message)
	}, sqlfunc.Options{}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	if err := functions.RegisterFunc("explode", func(v int64) int64 {
		panic(fmt.Sprintf("exploded on %d", v))
	}, sqlfunc.Options{}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	if err := functions.RegisterFunc("count_args", func(rest ...any) int { return len(rest) }, sqlfunc.Options{}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	sum := sqlfunc.Func(func(args []any) (any, error) { return args[0].(int64) + args[1].(int64), nil })
	if err := functions.Register("sum_pair", sum, sqlfunc.Options{Arity: sqlfunc.Args(2)}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, pool := range []*sqlitepool.Pool{db.Writer(), db.Readers()} {
		got, err := queryValue(ctx, pool, "SELECT fail('x')")
		var callableError *sqlfunc.CallableError
		if !errors.As(err, &callableError) || callableError.Name != "fail" {
			t.Errorf("%s: fail('x') = %v, %v; want a CallableError", pool.Role(), got, err)
		}
		var engineError *sqlitepool.EngineError
		if !errors.As(err, &engineError) || engineError.SQL != "SELECT fail('x')" {
			t.Errorf("%s: fail('x') error = %v, want an EngineError naming the statement", pool.Role(), err)
		}
		if _, err := queryValue(ctx, pool, "SELECT explode(3)"); err == nil || !strings.Contains(err.Error(), "exploded on 3") {
			t.Errorf("%s: explode(3) error = %v, want the panic message", pool.Role(), err)
		}
		for sql, want := range map[string]int64{"SELECT count_args()": 0, "SELECT count_args(1, 'a', x'')": 3} {
			if got, err := queryValue(ctx, pool, sql); err != nil || got != want {
				t.Errorf("%s: %s = %v, %v; want %d", pool.Role(), sql, got, err, want)
			}
		}
	}

	if err := functions.Remove("sum_pair", 2); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, err := db.QueryValue(ctx, "SELECT sum_pair(1, 2)")
	if err == nil || !strings.Contains(err.Error(), "no such function") {
		t.Errorf("sum_pair(1, 2) after Remove = %v, %v; want no such function", got, err)
	}

	// A failing call inside a write transaction rolls it back.
	if err := db.Exec(ctx, "INSERT INTO numbers (value) VALUES (1)"); err != nil {
		t.Fatalf("INSERT: %v", err)
	}
	err = db.Write(ctx, func(conn *sqlitepool.Conn) error {
		if err := conn.Exec(ctx, "INSERT INTO numbers (value) VALUES (2)"); err != nil {
			return err
		}
		return conn.Exec(ctx, "INSERT INTO items (name) VALUES (fail('rejected'))")
	})
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Errorf("Write error = %v, want the function failure", err)
	}

	// Outside a transaction the failing statement leaves no row.
	if err := db.Exec(ctx, "INSERT INTO items (name) VALUES (fail('rejected'))"); err == nil {
		t.Error("INSERT with a failing function succeeded")
	}
	err = db.Exec(ctx, "INSERT INTO numbers (value) SELECT 5 UNION ALL SELECT explode(6)")
	if err == nil {
		t.Error("INSERT with a panicking function succeeded")
	}

	// Inside a transaction only the failing statement is undone.
	err = db.Write(ctx, func(conn *sqlitepool.Conn) error {
		if err := conn.Exec(ctx, "INSERT INTO items (name) VALUES (fail('rejected'))"); err == nil {
			return errors.New("INSERT with a failing function succeeded")
		}
		return conn.Exec(ctx, "INSERT INTO numbers (value) VALUES (3)")
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	numbers, err := db.Query(ctx, "SELECT value FROM numbers ORDER BY value")
	if err != nil || !reflect.DeepEqual(numbers, []any{int64(1), int64(3)}) {
		t.Errorf("numbers = %v, %v; want [1 3]", numbers, err)
	}
	items, err := db.QueryValue(ctx, "SELECT count(*) FROM items")
	if err != nil || items != int64(0) {
		t.Errorf("items = %v, %v; want 0", items, err)
	}
}

func TestTakeHonorsContext(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	writer := db.Writer()

	conn, err := writer.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	// The writer pool has one connection, so this blocks until ctx
	// is done.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := writer.Take(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Take = %v, want context.Canceled", err)
	}

	writer.Put(conn)

	// A cancelled context also stops statements on a held connection.
	conn, err = writer.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer writer.Put(conn)
	if err := conn.Exec(ctx, "SELECT 1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Exec with cancelled context = %v", err)
	}
}

func TestPutTwicePanics(t *testing.T) {
	db := openTestDatabase(t, sqlitepool.Config{Readers: 1})
	conn, err := db.Readers().Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	db.Readers().Put(conn)

	defer func() {
		if recover() == nil {
			t.Error("second Put did not panic")
		}
	}()
	db.Readers().Put(conn)
}

func TestCloseWaitsAndRejects(t *testing.T) {
	db, err := sqlitepool.Open(sqlitepool.Config{Path: testutil.DatabasePath(t), Readers: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	conn, err := db.Readers().Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	closed := make(chan error, 1)
	go func() { closed <- db.Close() }()
	testutil.RequireNoReceive(t, closed, 50*time.Millisecond, "Close returned while a connection was out")

	db.Readers().Put(conn)
	if err := testutil.RequireReceive(t, closed, 5*time.Second, "Close"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := db.Readers().Take(context.Background()); !errors.Is(err, sqlitepool.ErrPoolClosed) {
		t.Errorf("Take after Close = %v, want ErrPoolClosed", err)
	}
	if err := db.Exec(context.Background(), "SELECT 1"); !errors.Is(err, sqlitepool.ErrPoolClosed) {
		t.Errorf("Exec after Close = %v, want ErrPoolClosed", err)
	}
}

func TestColumns(t *testing.T) {
	values, err := sqlitepool.Columns(int64(1), 1)
	if err != nil || !reflect.DeepEqual(values, []any{int64(1)}) {
		t.Errorf("Columns(scalar) = %v, %v", values, err)
	}
	if _, err := sqlitepool.Columns([]any{1, 2}, 3); err == nil {
		t.Error("Columns accepted a row of the wrong width")
	}
}

// queryValue runs sql on one connection of pool and unwraps the result.
func queryValue(ctx context.Context, pool *sqlitepool.Pool, sql string, params ...any) (any, error) {
	rows, err := pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return sqlitepool.Unwrap(rows), nil
}

// openTestDatabase opens a database with the test schema in a
// temporary directory. It is closed automatically when the test
// completes.
func openTestDatabase(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Database {
	t.Helper()

	cfg.Path = testutil.DatabasePath(t)
	if cfg.Schema == "" {
		cfg.Schema = numbersSchema
	}
	db, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}
