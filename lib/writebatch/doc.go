// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package writebatch coalesces many small writes into fewer
// transactions on a database's writer connection.
//
// Producers [Batcher.Submit] thunks and return immediately. One
// consumer goroutine, started with [Batcher.Run], drains up to
// Config.MaxBatchSize thunks at a time and hands them, together with
// the writer connection, to Config.Execute. [DefaultExecute] runs
// every thunk of a batch in one IMMEDIATE transaction and commits.
// Thunks of one batch run in submission order; a thunk submitted while
// a batch is running lands in a later batch.
//
// # Result delivery
//
// [Batcher.SubmitResult] returns a [Future] that is resolved as soon
// as the thunk has run, not when the enclosing transaction commits. A
// thunk whose batch later rolls back has already delivered its value.
// A caller that needs commit-confirmed delivery must signal completion
// from its own ExecuteFunc after the commit.
//
// The batcher imposes no retry or rollback policy. Failure handling
// belongs to the ExecuteFunc; the batcher only resolves the futures of
// thunks that never ran with [ErrBatchAborted].
package writebatch
