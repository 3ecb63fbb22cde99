package mqtt

import (
	"context"
	"log"
	"testing"
	"time"

	"iot-ingestor/internal/telemetry/application"
	telemetry "iot-ingestor/internal/telemetry/domain"
)

type fakeMessage struct {
	payload []byte
	acked   bool
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return qosAtLeastOnce }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "telemetry/test-001" }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              { m.acked = true }

func newTestReceiver(queue *application.Queue, ctx context.Context) *Receiver {
	return &Receiver{topic: "telemetry/#", queue: queue, logger: log.Default(), ctx: ctx}
}

func mustDecode(t *testing.T, payload string) telemetry.Reading {
	t.Helper()
	r, err := telemetry.DecodeReading([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestHandleMessage_ValidReadingEnqueuedThenAcked(t *testing.T) {
	queue := application.NewQueue(10)
	r := newTestReceiver(queue, context.Background())
	msg := &fakeMessage{payload: []byte(`{"device_id":"test-001","timestamp":"2025-10-05T12:00:00Z","temperature":25.0,"humidity":60.0,"battery":90.0}`)}

	r.handleMessage(nil, msg)

	if queue.Len() != 1 {
		t.Fatalf("expected reading in queue, len %d", queue.Len())
	}
	if !msg.acked {
		t.Fatal("expected message acked after queue admission")
	}
	got := <-queue.Readings()
	if got.DeviceID != "test-001" {
		t.Fatalf("expected device test-001, got %q", got.DeviceID)
	}
}

func TestHandleMessage_DecodeErrorDroppedAndAcked(t *testing.T) {
	queue := application.NewQueue(10)
	r := newTestReceiver(queue, context.Background())
	msg := &fakeMessage{payload: []byte(`not json`)}

	r.handleMessage(nil, msg)

	if queue.Len() != 0 {
		t.Fatalf("expected malformed message never enqueued, len %d", queue.Len())
	}
	if !msg.acked {
		t.Fatal("expected terminal decode failure acked")
	}
}

func TestHandleMessage_InvalidReadingNeverReachesQueue(t *testing.T) {
	queue := application.NewQueue(10)
	r := newTestReceiver(queue, context.Background())
	msg := &fakeMessage{payload: []byte(`{"device_id":"test-002","timestamp":"2025-10-05T12:00:00Z","temperature":999.0,"humidity":60.0,"battery":90.0}`)}

	r.handleMessage(nil, msg)

	if queue.Len() != 0 {
		t.Fatalf("expected out-of-range reading never enqueued, len %d", queue.Len())
	}
	if !msg.acked {
		t.Fatal("expected terminal validation failure acked")
	}
}

func TestHandleMessage_NoAckWhenAdmissionFails(t *testing.T) {
	queue := application.NewQueue(1)
	if err := queue.Enqueue(context.Background(), mustDecode(t, `{"device_id":"d","timestamp":"2025-10-05T11:00:00Z","temperature":1,"humidity":1,"battery":1}`)); err != nil {
		t.Fatalf("fill queue: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestReceiver(queue, ctx)
	msg := &fakeMessage{payload: []byte(`{"device_id":"test-001","timestamp":"2025-10-05T12:00:00Z","temperature":25.0,"humidity":60.0,"battery":90.0}`)}

	done := make(chan struct{})
	go func() {
		r.handleMessage(nil, msg)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleMessage blocked past cancellation")
	}
	if msg.acked {
		t.Fatal("expected message left unacked when admission fails")
	}
	if queue.Len() != 1 {
		t.Fatalf("expected queue unchanged, len %d", queue.Len())
	}
}
