// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package writebatch

import (
	"context"
	"sync"
)

// Future is a single-assignment result of one submitted thunk.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve stores the result if none has been stored yet. It reports
// whether this call stored it.
func (f *Future) resolve(value any, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
		resolved = true
	})
	return resolved
}
