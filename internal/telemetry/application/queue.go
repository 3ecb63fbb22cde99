package application

import (
	"context"

	"iot-ingestor/internal/observability/metrics"
	telemetry "iot-ingestor/internal/telemetry/domain"
)

// Queue is the bounded FIFO buffer between the receiver and the batcher and
// the backpressure point of the pipeline. The admission policy is blocking:
// when the queue is full the producer waits for space instead of dropping,
// so a reading accepted by the receiver is never lost in process. Each time
// admission has to wait, a backpressure counter is incremented.
type Queue struct {
	ch chan telemetry.Reading
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan telemetry.Reading, capacity)}
}

// Enqueue admits a reading, blocking while the queue is full. It returns the
// context error if the caller is cancelled before space frees.
func (q *Queue) Enqueue(ctx context.Context, r telemetry.Reading) error {
	select {
	case q.ch <- r:
		return nil
	default:
	}
	metrics.IncQueueBlocked()
	select {
	case q.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Readings is the consumer side of the queue. It is closed by Close.
func (q *Queue) Readings() <-chan telemetry.Reading {
	return q.ch
}

// Len reports the number of buffered readings.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the configured capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close stops admission. Call only after the producer has stopped.
func (q *Queue) Close() {
	close(q.ch)
}
