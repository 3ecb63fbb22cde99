package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	telemetry "iot-ingestor/internal/telemetry/domain"
)

// Load generator: publishes synthetic sensor telemetry at a target rate, with
// a small share of out-of-range outliers so the ingestor's validation path
// gets exercised too.

const burstSize = 200

type config struct {
	broker   string
	port     int
	devices  int
	rate     int
	duration time.Duration
}

func main() {
	cfg := parseConfig()

	clientID := fmt.Sprintf("sim-%08x", rand.Uint32())
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.broker, cfg.port)).
		SetClientID(clientID).
		SetKeepAlive(30 * time.Second).
		SetConnectRetry(true)
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	log.Printf("simulator: broker=%s:%d devices=%d rate=%d msg/s", cfg.broker, cfg.port, cfg.devices, cfg.rate)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		deadline = time.After(cfg.duration)
	}

	burstInterval := time.Duration(burstSize) * time.Second / time.Duration(cfg.rate)
	var published uint64
	for {
		burstStart := time.Now()
		for i := 0; i < burstSize; i++ {
			deviceID := fmt.Sprintf("dev-%d", published%uint64(cfg.devices))
			reading := generateReading(deviceID)
			payload, err := json.Marshal(reading)
			if err != nil {
				log.Printf("marshal: %v", err)
				continue
			}
			topic := "telemetry/" + deviceID
			if token := client.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
				log.Printf("publish: %v", token.Error())
				continue
			}
			published++
		}
		if published%10000 == 0 {
			log.Printf("published %d messages", published)
		}

		select {
		case <-stop:
			log.Printf("simulator stopped after %d messages", published)
			return
		case <-deadline:
			log.Printf("duration elapsed after %d messages", published)
			return
		default:
		}

		if elapsed := time.Since(burstStart); elapsed < burstInterval {
			time.Sleep(burstInterval - elapsed)
		} else if elapsed > 2*burstInterval {
			log.Printf("burst took %s, target %s: broker or network saturated", elapsed, burstInterval)
		}
	}
}

// generateReading produces mostly in-range values with ~5% outliers outside
// the validator's domain ranges.
func generateReading(deviceID string) telemetry.Reading {
	temperature := 15 + rand.Float64()*20
	if rand.Float64() < 0.05 {
		temperature = -60 + rand.Float64()*180
	}
	humidity := 30 + rand.Float64()*50
	if rand.Float64() < 0.05 {
		humidity = -20 + rand.Float64()*160
	}
	battery := 20 + rand.Float64()*80
	if rand.Float64() < 0.02 {
		battery = rand.Float64() * 20
	}
	return telemetry.Reading{
		DeviceID:    deviceID,
		Timestamp:   time.Now().UTC(),
		Temperature: temperature,
		Humidity:    humidity,
		Battery:     battery,
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.broker, "broker", getenvDefault("MQTT_BROKER", "localhost"), "MQTT broker host")
	flag.IntVar(&cfg.port, "port", 1883, "MQTT broker port")
	flag.IntVar(&cfg.devices, "devices", 100, "number of simulated devices")
	flag.IntVar(&cfg.rate, "rate", 1000, "target publish rate in messages per second")
	flag.DurationVar(&cfg.duration, "duration", 0, "stop after this long (0 = run until interrupted)")
	flag.Parse()

	if cfg.devices <= 0 {
		log.Fatal("devices must be > 0")
	}
	if cfg.rate <= 0 {
		log.Fatal("rate must be > 0")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
