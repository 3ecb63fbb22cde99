package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reading is a single validated telemetry sample. Its identity for
// deduplication is the (DeviceID, Timestamp) pair, enforced by the store.
type Reading struct {
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Battery     float64   `json:"battery"`
}

// WriteResult reports the outcome of one committed batch insert.
type WriteResult struct {
	Inserted     int64
	Deduplicated int64
}

// wireReading mirrors the inbound JSON payload with pointer fields so that
// a missing field is distinguishable from a zero value.
type wireReading struct {
	DeviceID    *string    `json:"device_id"`
	Timestamp   *time.Time `json:"timestamp"`
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Battery     *float64   `json:"battery"`
}

// DecodeReading parses an inbound payload into a Reading. The decode is
// strict: every field must be present and well-typed, the timestamp must be
// ISO-8601. Failures wrap ErrDecode.
func DecodeReading(payload []byte) (Reading, error) {
	var wire wireReading
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if wire.DeviceID == nil {
		return Reading{}, fmt.Errorf("%w: missing device_id", ErrDecode)
	}
	if wire.Timestamp == nil {
		return Reading{}, fmt.Errorf("%w: missing timestamp", ErrDecode)
	}
	if wire.Temperature == nil {
		return Reading{}, fmt.Errorf("%w: missing temperature", ErrDecode)
	}
	if wire.Humidity == nil {
		return Reading{}, fmt.Errorf("%w: missing humidity", ErrDecode)
	}
	if wire.Battery == nil {
		return Reading{}, fmt.Errorf("%w: missing battery", ErrDecode)
	}
	return Reading{
		DeviceID:    *wire.DeviceID,
		Timestamp:   wire.Timestamp.UTC(),
		Temperature: *wire.Temperature,
		Humidity:    *wire.Humidity,
		Battery:     *wire.Battery,
	}, nil
}
