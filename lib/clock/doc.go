// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the SQL
// runtime.
//
// Production code holds a [Clock] instead of calling time.Now or
// time.After directly. [Real] delegates to the time package. [Fake]
// returns a clock that only moves when the test calls Advance, so
// timing-dependent behavior (batch linger windows, checkout wait
// measurement) is deterministic under test.
//
// A goroutine that calls After on a fake clock registers a pending
// waiter. Tests call WaitForTimers before Advance to avoid racing the
// registration:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go batcher.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(10 * time.Millisecond)
package clock
