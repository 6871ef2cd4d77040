// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package writebatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/sqlrt/lib/clock"
	"github.com/bureau-foundation/sqlrt/lib/sqlitepool"
)

// DefaultMaxBatchSize is the batch size used when Config.MaxBatchSize
// is zero.
const DefaultMaxBatchSize = 64

var (
	// ErrStopped is returned by Submit after Run has returned, and
	// resolves the futures of thunks still queued at that point.
	ErrStopped = errors.New("writebatch: batcher stopped")

	// ErrBatchAborted resolves the future of a thunk that was part of
	// a batch but never ran.
	ErrBatchAborted = errors.New("writebatch: batch aborted before thunk ran")
)

// Thunk is one unit of deferred write work. It runs on the writer
// connection, inside whatever transaction the ExecuteFunc opened.
type Thunk func(ctx context.Context, conn *sqlitepool.Conn) (any, error)

// ExecuteFunc runs one batch of thunks on the writer connection. It
// owns the transaction and the failure policy of the batch.
type ExecuteFunc func(ctx context.Context, conn *sqlitepool.Conn, thunks []Thunk) error

// DefaultExecute runs thunks in order in one IMMEDIATE transaction and
// commits. The first failing thunk rolls the whole batch back; the
// thunks after it do not run.
func DefaultExecute(ctx context.Context, conn *sqlitepool.Conn, thunks []Thunk) error {
	return conn.Transaction(ctx, sqlitepool.Immediate, func(conn *sqlitepool.Conn) error {
		for index, thunk := range thunks {
			if _, err := thunk(ctx, conn); err != nil {
				return fmt.Errorf("thunk %d of %d: %w", index+1, len(thunks), err)
			}
		}
		return nil
	})
}

// Config holds the parameters for creating a Batcher.
type Config struct {
	// Writer is the pool batches run against, normally
	// Database.Writer(). Required.
	Writer *sqlitepool.Pool

	// Execute runs each batch. Defaults to DefaultExecute.
	Execute ExecuteFunc

	// MaxBatchSize caps the number of thunks per batch. Defaults to
	// DefaultMaxBatchSize.
	MaxBatchSize int

	// Linger is how long the consumer waits after the queue becomes
	// non-empty before draining, so that writes arriving close
	// together share a batch. Zero drains immediately.
	Linger time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

type item struct {
	thunk  Thunk
	future *Future
}

// Batcher queues thunks and runs them in batches. It is safe for
// concurrent use.
type Batcher struct {
	writer       *sqlitepool.Pool
	execute      ExecuteFunc
	maxBatchSize int
	linger       time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	mu      sync.Mutex
	queue   []item
	stopped bool

	// notify holds a token while the queue may be non-empty.
	notify  chan struct{}
	running atomic.Bool
}

// New returns a Batcher. Nothing is executed until Run is called.
func New(cfg Config) (*Batcher, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("writebatch: Writer is required")
	}
	if cfg.Linger < 0 {
		return nil, fmt.Errorf("writebatch: Linger must not be negative, got %v", cfg.Linger)
	}
	execute := cfg.Execute
	if execute == nil {
		execute = DefaultExecute
	}
	maxBatchSize := cfg.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Batcher{
		writer:       cfg.Writer,
		execute:      execute,
		maxBatchSize: maxBatchSize,
		linger:       cfg.Linger,
		clock:        clk,
		logger:       logger,
		notify:       make(chan struct{}, 1),
	}, nil
}

// Submit queues thunk and returns immediately. Its result is
// discarded.
func (b *Batcher) Submit(thunk Thunk) error {
	return b.enqueue(item{thunk: thunk})
}

// SubmitResult queues thunk and returns a Future resolved with its
// result once it has run.
func (b *Batcher) SubmitResult(thunk Thunk) (*Future, error) {
	future := newFuture()
	if err := b.enqueue(item{thunk: thunk, future: future}); err != nil {
		return nil, err
	}
	return future, nil
}

func (b *Batcher) enqueue(entry item) error {
	if entry.thunk == nil {
		return fmt.Errorf("writebatch: nil thunk")
	}
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	b.queue = append(b.queue, entry)
	QueueDepth.Set(float64(len(b.queue)))
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued thunks not yet taken into a
// batch.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Run is the single consumer. It drains batches until ctx is done,
// then stops accepting submissions and resolves the futures of
// everything still queued with ErrStopped. Run returns nil on
// cancellation; calling it while another Run is active returns an
// error.
func (b *Batcher) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("writebatch: Run already active")
	}
	defer b.running.Store(false)
	defer b.stop()

	b.logger.Info("write batcher started",
		"max_batch_size", b.maxBatchSize,
		"linger", b.linger,
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.notify:
		}
		if b.linger > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-b.clock.After(b.linger):
			}
		}
		for ctx.Err() == nil {
			batch := b.take()
			if len(batch) == 0 {
				break
			}
			b.runBatch(ctx, batch)
		}
	}
}

// take removes up to maxBatchSize thunks from the head of the queue.
func (b *Batcher) take() []item {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := min(len(b.queue), b.maxBatchSize)
	if count == 0 {
		return nil
	}
	batch := make([]item, count)
	copy(batch, b.queue)
	clear(b.queue[:count])
	b.queue = b.queue[count:]
	QueueDepth.Set(float64(len(b.queue)))
	return batch
}

func (b *Batcher) runBatch(ctx context.Context, batch []item) {
	start := b.clock.Now()
	err := b.executeBatch(ctx, batch)
	BatchDurationSeconds.Observe(clock.Since(b.clock, start).Seconds())
	ThunksTotal.Add(float64(len(batch)))

	aborted := ErrBatchAborted
	if err != nil {
		BatchesTotal.WithLabelValues(statusFail).Inc()
		b.logger.Error("write batch failed", "size", len(batch), "error", err)
		aborted = fmt.Errorf("%w: %w", ErrBatchAborted, err)
	} else {
		BatchesTotal.WithLabelValues(statusOK).Inc()
	}
	for _, entry := range batch {
		if entry.future != nil {
			entry.future.resolve(nil, aborted)
		}
	}
}

func (b *Batcher) executeBatch(ctx context.Context, batch []item) error {
	conn, err := b.writer.Take(ctx)
	if err != nil {
		return err
	}
	defer b.writer.Put(conn)

	thunks := make([]Thunk, len(batch))
	for index, entry := range batch {
		thunks[index] = wrap(entry)
	}
	return b.execute(ctx, conn, thunks)
}

// wrap delivers the thunk's result to its future as soon as it runs.
func wrap(entry item) Thunk {
	if entry.future == nil {
		return entry.thunk
	}
	return func(ctx context.Context, conn *sqlitepool.Conn) (any, error) {
		value, err := entry.thunk(ctx, conn)
		entry.future.resolve(value, err)
		return value, err
	}
}

// stop rejects further submissions and fails everything still queued.
func (b *Batcher) stop() {
	b.mu.Lock()
	b.stopped = true
	remaining := b.queue
	b.queue = nil
	QueueDepth.Set(0)
	b.mu.Unlock()

	for _, entry := range remaining {
		if entry.future != nil {
			entry.future.resolve(nil, ErrStopped)
		}
	}
	b.logger.Info("write batcher stopped", "discarded", len(remaining))
}
