package telemetry

import "context"

// BatchStore persists a sealed batch of readings in one round trip.
// Duplicate (device_id, ts) pairs are skipped, not errored; the result
// reports how many rows were actually inserted and how many were skipped.
type BatchStore interface {
	InsertReadings(ctx context.Context, readings []Reading) (WriteResult, error)
}
