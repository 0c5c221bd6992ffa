package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultWriteTimeout bounds a single upsert.
const DefaultWriteTimeout = 10 * time.Second

// UpsertFunc persists one encoded grid.
type UpsertFunc func(ctx context.Context, encoded string) error

// Writer serialises upserts for one participant. At most one write is in
// flight; later submissions collapse into a single pending payload, so the
// server always ends up with the most recent grid and writes land in
// submission order.
type Writer struct {
	upsert  UpsertFunc
	timeout time.Duration
	logger  *slog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	pending    string
	hasPending bool
	inFlight   bool
	idle       chan struct{}
	err        error
	written    int
}

// NewWriter returns an idle writer. A non-positive timeout uses DefaultWriteTimeout.
func NewWriter(upsert UpsertFunc, timeout time.Duration, logger *slog.Logger) *Writer {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Writer{
		upsert:  upsert,
		timeout: timeout,
		logger:  logger,
		base:    base,
		cancel:  cancel,
		idle:    idle,
	}
}

// Submit queues encoded for writing and returns immediately. A payload still
// waiting from an earlier Submit is replaced.
func (w *Writer) Submit(encoded string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = encoded
	w.hasPending = true
	if w.inFlight {
		return
	}
	w.inFlight = true
	w.idle = make(chan struct{})
	go w.run()
}

func (w *Writer) run() {
	for {
		w.mu.Lock()
		if !w.hasPending || w.base.Err() != nil {
			w.hasPending = false
			w.inFlight = false
			close(w.idle)
			w.mu.Unlock()
			return
		}
		payload := w.pending
		w.hasPending = false
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(w.base, w.timeout)
		err := w.upsert(ctx, payload)
		cancel()

		w.mu.Lock()
		if err != nil {
			w.err = err
			w.logger.Error("availability write failed", "error", err)
		} else {
			w.err = nil
			w.written++
		}
		w.mu.Unlock()
	}
}

// Flush waits until no write is in flight or pending and returns Err.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()

	select {
	case <-idle:
		return w.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error of the most recent write, or nil once a later write succeeded.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Written returns the number of successful writes.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close cancels the in-flight write and drops any pending payload.
func (w *Writer) Close() {
	w.cancel()
}
