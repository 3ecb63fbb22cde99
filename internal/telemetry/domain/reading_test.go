package telemetry

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeReading_Valid(t *testing.T) {
	payload := []byte(`{"device_id":"test-001","timestamp":"2025-10-05T12:00:00Z","temperature":25.0,"humidity":60.0,"battery":90.0}`)
	r, err := DecodeReading(payload)
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}
	if r.DeviceID != "test-001" {
		t.Fatalf("expected device test-001, got %q", r.DeviceID)
	}
	want := time.Date(2025, 10, 5, 12, 0, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Fatalf("expected timestamp %v, got %v", want, r.Timestamp)
	}
	if r.Temperature != 25.0 || r.Humidity != 60.0 || r.Battery != 90.0 {
		t.Fatalf("unexpected values: %+v", r)
	}
}

func TestDecodeReading_TimestampNormalizedToUTC(t *testing.T) {
	payload := []byte(`{"device_id":"d","timestamp":"2025-10-05T14:00:00+02:00","temperature":1,"humidity":1,"battery":1}`)
	r, err := DecodeReading(payload)
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}
	if r.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", r.Timestamp.Location())
	}
	want := time.Date(2025, 10, 5, 12, 0, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, r.Timestamp)
	}
}

func TestDecodeReading_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `not json`},
		{"missing device_id", `{"timestamp":"2025-10-05T12:00:00Z","temperature":25,"humidity":60,"battery":90}`},
		{"missing timestamp", `{"device_id":"d","temperature":25,"humidity":60,"battery":90}`},
		{"missing temperature", `{"device_id":"d","timestamp":"2025-10-05T12:00:00Z","humidity":60,"battery":90}`},
		{"missing humidity", `{"device_id":"d","timestamp":"2025-10-05T12:00:00Z","temperature":25,"battery":90}`},
		{"missing battery", `{"device_id":"d","timestamp":"2025-10-05T12:00:00Z","temperature":25,"humidity":60}`},
		{"bad timestamp", `{"device_id":"d","timestamp":"yesterday","temperature":25,"humidity":60,"battery":90}`},
		{"string temperature", `{"device_id":"d","timestamp":"2025-10-05T12:00:00Z","temperature":"hot","humidity":60,"battery":90}`},
		{"empty payload", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeReading([]byte(tc.payload))
			if err == nil {
				t.Fatal("expected decode error, got nil")
			}
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestDecodeReading_IgnoresUnknownFields(t *testing.T) {
	payload := []byte(`{"device_id":"d","timestamp":"2025-10-05T12:00:00Z","temperature":25,"humidity":60,"battery":90,"firmware":"1.2.3"}`)
	if _, err := DecodeReading(payload); err != nil {
		t.Fatalf("expected unknown field to be ignored, got %v", err)
	}
}
