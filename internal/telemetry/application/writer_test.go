package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	telemetry "iot-ingestor/internal/telemetry/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	batches [][]telemetry.Reading
}

func (s *fakeStore) InsertReadings(ctx context.Context, readings []telemetry.Reading) (telemetry.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.batches = append(s.batches, readings)
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return telemetry.WriteResult{}, s.errs[s.calls-1]
	}
	return telemetry.WriteResult{Inserted: int64(len(readings))}, nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func transientErr() error {
	return fmt.Errorf("%w: connection refused", telemetry.ErrTransientStore)
}

func runWriter(t *testing.T, store *fakeStore, ctx context.Context, batch []telemetry.Reading, opts ...WriterOption) {
	t.Helper()
	w, err := NewWriter(store, nil, opts...)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	batches := make(chan []telemetry.Reading, 1)
	batches <- batch
	close(batches)
	done := make(chan struct{})
	go func() {
		w.Run(ctx, batches)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not terminate")
	}
}

func batchOf(n int) []telemetry.Reading {
	batch := make([]telemetry.Reading, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, reading("dev-1", i))
	}
	return batch
}

func TestWriter_CommitsFirstAttempt(t *testing.T) {
	store := &fakeStore{}
	runWriter(t, store, context.Background(), batchOf(3))
	if store.callCount() != 1 {
		t.Fatalf("expected 1 insert attempt, got %d", store.callCount())
	}
}

func TestWriter_RetriesTransientThenCommits(t *testing.T) {
	store := &fakeStore{errs: []error{transientErr()}}
	runWriter(t, store, context.Background(), batchOf(3),
		WithMaxAttempts(3), WithBackoff(time.Millisecond, 2*time.Millisecond))
	if store.callCount() != 2 {
		t.Fatalf("expected failed attempt then commit, got %d attempts", store.callCount())
	}
	// The same batch is retried whole; rows are committed exactly once.
	if len(store.batches[0]) != 3 || len(store.batches[1]) != 3 {
		t.Fatalf("expected full batch on every attempt, got %d and %d", len(store.batches[0]), len(store.batches[1]))
	}
}

func TestWriter_FatalErrorSingleAttempt(t *testing.T) {
	store := &fakeStore{errs: []error{errors.New("malformed batch")}}
	runWriter(t, store, context.Background(), batchOf(2),
		WithMaxAttempts(5), WithBackoff(time.Millisecond, 2*time.Millisecond))
	if store.callCount() != 1 {
		t.Fatalf("expected fatal error dropped after 1 attempt, got %d", store.callCount())
	}
}

func TestWriter_BoundedRetries(t *testing.T) {
	store := &fakeStore{errs: []error{transientErr(), transientErr(), transientErr(), transientErr()}}
	runWriter(t, store, context.Background(), batchOf(2),
		WithMaxAttempts(3), WithBackoff(time.Millisecond, 2*time.Millisecond))
	if store.callCount() != 3 {
		t.Fatalf("expected exactly maxAttempts=3 attempts, got %d", store.callCount())
	}
}

func TestWriter_ShutdownDropsWithoutInsert(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runWriter(t, store, ctx, batchOf(2))
	if store.callCount() != 0 {
		t.Fatalf("expected no attempts after grace expired, got %d", store.callCount())
	}
}

func TestWriter_SkipsEmptyBatch(t *testing.T) {
	store := &fakeStore{}
	runWriter(t, store, context.Background(), nil)
	if store.callCount() != 0 {
		t.Fatalf("expected empty batch never sent to the store, got %d attempts", store.callCount())
	}
}
