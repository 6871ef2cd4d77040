// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/sqlrt/lib/config"
	"github.com/bureau-foundation/sqlrt/lib/sqlitepool"
	"github.com/bureau-foundation/sqlrt/lib/writebatch"
)

// runBatch submits every statement read from stdin to a write batcher
// and waits for all of them. Blank lines and lines starting with "--"
// are skipped. It reports how many statements ran and how many rows
// they changed, and fails if any statement failed.
func runBatch(ctx context.Context, db *sqlitepool.Database, cfg config.BatchConfig, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	// Futures resolve when their statement runs, before the commit, so
	// commit failures are collected separately.
	var batchFailures failureList
	batcher, err := writebatch.New(writebatch.Config{
		Writer: db.Writer(),
		Execute: func(ctx context.Context, conn *sqlitepool.Conn, thunks []writebatch.Thunk) error {
			err := writebatch.DefaultExecute(ctx, conn, thunks)
			batchFailures.add(err)
			return err
		},
		MaxBatchSize: cfg.MaxSize,
		Linger:       cfg.Linger,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	runContext, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- batcher.Run(runContext) }()
	defer func() {
		cancel()
		<-done
	}()

	type submitted struct {
		line   int
		sql    string
		future *writebatch.Future
	}
	var pending []submitted

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		sql := strings.TrimSpace(scanner.Text())
		if sql == "" || strings.HasPrefix(sql, "--") {
			continue
		}
		future, err := batcher.SubmitResult(execStatement(sql))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		pending = append(pending, submitted{line: line, sql: sql, future: future})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading statements: %w", err)
	}

	var changed int64
	var failures []error
	for _, entry := range pending {
		value, err := entry.future.Wait(ctx)
		if err != nil {
			failures = append(failures, fmt.Errorf("line %d: %w", entry.line, err))
			continue
		}
		changed += value.(int64)
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}

	// The writer pool holds one connection, which the batcher keeps
	// until the last batch has committed.
	if err := db.Write(ctx, func(*sqlitepool.Conn) error { return nil }); err != nil {
		return err
	}
	if err := batchFailures.join(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%d statements, %d rows changed\n", len(pending), changed)
	return err
}

// execStatement returns a thunk that runs sql on the writer and yields
// the number of rows it changed.
func execStatement(sql string) writebatch.Thunk {
	return func(ctx context.Context, conn *sqlitepool.Conn) (any, error) {
		if err := conn.Exec(ctx, sql); err != nil {
			return nil, err
		}
		return int64(conn.Changes()), nil
	}
}

type failureList struct {
	mu     sync.Mutex
	errors []error
}

func (l *failureList) add(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, err)
}

func (l *failureList) join() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.errors...)
}
