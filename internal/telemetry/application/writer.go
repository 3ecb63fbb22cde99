package application

import (
	"context"
	"errors"
	"log"
	"time"

	"iot-ingestor/internal/observability/metrics"
	telemetry "iot-ingestor/internal/telemetry/domain"
)

const (
	defaultMaxAttempts  = 5
	defaultBackoff      = 100 * time.Millisecond
	defaultBackoffCap   = 2 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Writer persists sealed batches through the store. Each batch gets a bounded
// number of attempts: transient store failures are retried with exponential
// backoff, anything else drops the batch after a single attempt. A batch is
// terminal after a commit, a fatal error, or exhausted retries; nothing is
// retried indefinitely and no failure path panics.
type Writer struct {
	store        telemetry.BatchStore
	maxAttempts  int
	backoff      time.Duration
	backoffCap   time.Duration
	writeTimeout time.Duration
	logger       *log.Logger
}

// WriterOption configures the writer.
type WriterOption func(*Writer)

// WithMaxAttempts bounds insert attempts per batch.
func WithMaxAttempts(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithBackoff sets the initial retry delay and its ceiling.
func WithBackoff(initial, cap time.Duration) WriterOption {
	return func(w *Writer) {
		if initial > 0 {
			w.backoff = initial
		}
		if cap > 0 {
			w.backoffCap = cap
		}
	}
}

// WithWriteTimeout bounds a single insert attempt.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.writeTimeout = d
		}
	}
}

// NewWriter constructs a writer.
func NewWriter(store telemetry.BatchStore, logger *log.Logger, opts ...WriterOption) (*Writer, error) {
	if store == nil {
		return nil, errors.New("writer: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	w := &Writer{
		store:        store,
		maxAttempts:  defaultMaxAttempts,
		backoff:      defaultBackoff,
		backoffCap:   defaultBackoffCap,
		writeTimeout: defaultWriteTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run consumes sealed batches until the channel closes. Several Run calls may
// share one Writer; the pool size bounds in-flight batches and therefore
// concurrent store connections. The context bounds the drain at shutdown:
// once it is cancelled, remaining batches are dropped and counted.
func (w *Writer) Run(ctx context.Context, batches <-chan []telemetry.Reading) {
	for batch := range batches {
		if len(batch) == 0 {
			continue
		}
		w.persist(ctx, batch)
	}
}

func (w *Writer) persist(ctx context.Context, batch []telemetry.Reading) {
	backoff := w.backoff
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			w.logger.Printf("writer: dropping batch of %d, shutdown grace expired", len(batch))
			metrics.IncBatchDropped(metrics.DropReasonShutdown)
			return
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, w.writeTimeout)
		result, err := w.store.InsertReadings(attemptCtx, batch)
		cancel()
		if err == nil {
			metrics.ObserveBatchCommit(len(batch), result.Inserted, result.Deduplicated, time.Since(start))
			if attempt > 1 {
				w.logger.Printf("writer: batch of %d committed on attempt %d (%d inserted, %d duplicates)", len(batch), attempt, result.Inserted, result.Deduplicated)
			}
			return
		}

		metrics.IncWriteFailure()
		if !errors.Is(err, telemetry.ErrTransientStore) {
			first, last := batch[0], batch[len(batch)-1]
			w.logger.Printf("writer: fatal error, dropping batch of %d spanning %s@%s .. %s@%s: %v",
				len(batch),
				first.DeviceID, first.Timestamp.Format(time.RFC3339),
				last.DeviceID, last.Timestamp.Format(time.RFC3339),
				err)
			metrics.IncBatchDropped(metrics.DropReasonFatal)
			return
		}
		if attempt >= w.maxAttempts {
			w.logger.Printf("writer: dropping batch of %d after %d attempts: %v", len(batch), attempt, err)
			metrics.IncBatchDropped(metrics.DropReasonExhausted)
			return
		}

		w.logger.Printf("writer: attempt %d/%d failed, retrying in %s: %v", attempt, w.maxAttempts, backoff, err)
		select {
		case <-ctx.Done():
			metrics.IncBatchDropped(metrics.DropReasonShutdown)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.backoffCap {
			backoff = w.backoffCap
		}
	}
}
