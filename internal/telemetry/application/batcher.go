package application

import (
	"errors"
	"log"
	"time"

	telemetry "iot-ingestor/internal/telemetry/domain"
)

// Batcher drains the queue and accumulates readings into batches, sealing a
// batch when it reaches maxSize readings or maxAge since the last flush,
// whichever comes first. Sealed batches are handed to the writer pool over
// the out channel and never touched again; accumulation of the next batch
// continues immediately.
type Batcher struct {
	queue   *Queue
	out     chan []telemetry.Reading
	maxSize int
	maxAge  time.Duration
	logger  *log.Logger
}

// NewBatcher constructs a batcher. The out channel is closed when the queue
// closes, after a final flush of any partial batch.
func NewBatcher(queue *Queue, out chan []telemetry.Reading, maxSize int, maxAge time.Duration, logger *log.Logger) (*Batcher, error) {
	if queue == nil {
		return nil, errors.New("batcher: nil queue")
	}
	if out == nil {
		return nil, errors.New("batcher: nil out channel")
	}
	if maxSize <= 0 {
		return nil, errors.New("batcher: max size must be positive")
	}
	if maxAge <= 0 {
		return nil, errors.New("batcher: max age must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Batcher{queue: queue, out: out, maxSize: maxSize, maxAge: maxAge, logger: logger}, nil
}

// Run loops until the queue closes. It never blocks on writer completion
// beyond the out channel's own admission.
func (b *Batcher) Run() {
	batch := make([]telemetry.Reading, 0, b.maxSize)
	timer := time.NewTimer(b.maxAge)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		sealed := batch
		batch = make([]telemetry.Reading, 0, b.maxSize)
		b.out <- sealed
	}

	for {
		select {
		case r, ok := <-b.queue.Readings():
			if !ok {
				flush()
				close(b.out)
				b.logger.Printf("batcher: queue closed, final flush done")
				return
			}
			batch = append(batch, r)
			if len(batch) >= b.maxSize {
				flush()
				resetTimer(timer, b.maxAge)
			}
		case <-timer.C:
			flush()
			timer.Reset(b.maxAge)
		}
	}
}

// resetTimer rearms a timer that has not necessarily fired.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
