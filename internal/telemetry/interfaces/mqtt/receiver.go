package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"iot-ingestor/internal/observability/metrics"
	"iot-ingestor/internal/telemetry/application"
	telemetry "iot-ingestor/internal/telemetry/domain"
)

const qosAtLeastOnce = 1

// Receiver bridges the MQTT broker to the pipeline: it decodes and validates
// each inbound message and offers valid readings to the bounded queue.
// Automatic acknowledgment is disabled on the client; a message is acked only
// after its reading has been admitted to the queue, so a crash between
// delivery and admission leads to broker redelivery rather than silent loss.
type Receiver struct {
	client paho.Client
	topic  string
	queue  *application.Queue
	logger *log.Logger
	ctx    context.Context
}

// NewReceiver constructs a receiver subscribed to topic on the given broker.
func NewReceiver(brokerURL, clientID, topic string, queue *application.Queue, logger *log.Logger) (*Receiver, error) {
	if brokerURL == "" {
		return nil, errors.New("mqtt receiver: empty broker url")
	}
	if topic == "" {
		return nil, errors.New("mqtt receiver: empty topic")
	}
	if queue == nil {
		return nil, errors.New("mqtt receiver: nil queue")
	}
	if logger == nil {
		logger = log.Default()
	}
	if clientID == "" {
		clientID = fmt.Sprintf("ingestor-%08x", rand.Uint32())
	}

	receiver := &Receiver{topic: topic, queue: queue, logger: logger}

	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetCleanSession(false).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(true).
		SetAutoAckDisabled(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Printf("mqtt: connection lost: %v", err)
		})
	receiver.client = paho.NewClient(opts)
	return receiver, nil
}

// Start connects and subscribes at QoS 1. The context bounds queue admission:
// once it is cancelled, unadmitted messages stay unacked for redelivery.
func (r *Receiver) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.ctx = ctx
	if token := r.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	if token := r.client.Subscribe(r.topic, qosAtLeastOnce, r.handleMessage); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe: %w", token.Error())
	}
	r.logger.Printf("mqtt: subscribed to %s at qos %d", r.topic, qosAtLeastOnce)
	return nil
}

// Stop unsubscribes and disconnects. New deliveries cease; messages already
// delivered but not acked will be redelivered by the broker.
func (r *Receiver) Stop() {
	if token := r.client.Unsubscribe(r.topic); token.Wait() && token.Error() != nil {
		r.logger.Printf("mqtt: unsubscribe: %v", token.Error())
	}
	r.client.Disconnect(250)
	r.logger.Printf("mqtt: disconnected")
}

// handleMessage processes one delivery. Decode and validation failures are
// terminal: counted, acked, and dropped without ever touching the queue.
func (r *Receiver) handleMessage(_ paho.Client, msg paho.Message) {
	metrics.IncMessageReceived()

	reading, err := telemetry.DecodeReading(msg.Payload())
	if err != nil {
		metrics.IncMessageInvalid(metrics.ReasonDecode)
		msg.Ack()
		return
	}
	if err := telemetry.Validate(reading); err != nil {
		metrics.IncMessageInvalid(metrics.ReasonValidation)
		msg.Ack()
		return
	}

	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.queue.Enqueue(ctx, reading); err != nil {
		// Shutdown before admission: leave unacked so the broker redelivers.
		return
	}
	metrics.IncMessageValid()
	msg.Ack()
}
