package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the plain settings structure handed to the pipeline at startup.
// Values come from environment variables, optionally overridden by a YAML
// file named in CONFIG_FILE.
type Config struct {
	DatabaseURL   string `yaml:"database_url"`
	StoreMaxConns int    `yaml:"store_max_conns"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	HTTPAddr string `yaml:"http_addr"`

	QueueCapacity int `yaml:"queue_capacity"`

	BatchMaxSize  int `yaml:"batch_max_size"`
	BatchMaxAgeMS int `yaml:"batch_max_age_ms"`

	WriterPoolSize       int `yaml:"writer_pool_size"`
	WriterMaxAttempts    int `yaml:"writer_max_attempts"`
	WriterBackoffMS      int `yaml:"writer_backoff_ms"`
	WriterBackoffCapMS   int `yaml:"writer_backoff_cap_ms"`
	WriteTimeoutSeconds  int `yaml:"write_timeout_seconds"`
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds"`
}

// Load builds the configuration from the environment and the optional
// CONFIG_FILE overlay.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		StoreMaxConns:        getenvIntDefault("STORE_MAX_CONNS", 20),
		MQTTBroker:           getenvDefault("MQTT_BROKER", "localhost"),
		MQTTPort:             getenvIntDefault("MQTT_PORT", 1883),
		MQTTTopic:            getenvDefault("MQTT_TOPIC", "telemetry/#"),
		MQTTClientID:         getenvDefault("MQTT_CLIENT_ID", ""),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		QueueCapacity:        getenvIntDefault("QUEUE_CAPACITY", 100000),
		BatchMaxSize:         getenvIntDefault("BATCH_SIZE", 2000),
		BatchMaxAgeMS:        getenvIntDefault("BATCH_MAX_AGE_MS", 50),
		WriterPoolSize:       getenvIntDefault("WRITER_POOL_SIZE", 2),
		WriterMaxAttempts:    getenvIntDefault("WRITER_MAX_ATTEMPTS", 5),
		WriterBackoffMS:      getenvIntDefault("WRITER_BACKOFF_MS", 100),
		WriterBackoffCapMS:   getenvIntDefault("WRITER_BACKOFF_CAP_MS", 2000),
		WriteTimeoutSeconds:  getenvIntDefault("WRITE_TIMEOUT_SECONDS", 10),
		ShutdownGraceSeconds: getenvIntDefault("SHUTDOWN_GRACE_SECONDS", 10),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if cfg.QueueCapacity <= 0 {
		return cfg, fmt.Errorf("config: queue capacity must be positive, got %d", cfg.QueueCapacity)
	}
	if cfg.BatchMaxSize <= 0 {
		return cfg, fmt.Errorf("config: batch size must be positive, got %d", cfg.BatchMaxSize)
	}
	if cfg.BatchMaxAgeMS <= 0 {
		return cfg, fmt.Errorf("config: batch max age must be positive, got %d", cfg.BatchMaxAgeMS)
	}
	if cfg.WriterPoolSize <= 0 {
		return cfg, fmt.Errorf("config: writer pool size must be positive, got %d", cfg.WriterPoolSize)
	}
	if cfg.WriterMaxAttempts <= 0 {
		return cfg, fmt.Errorf("config: writer max attempts must be positive, got %d", cfg.WriterMaxAttempts)
	}
	return cfg, nil
}

// BrokerURL returns the tcp:// address of the MQTT broker.
func (c Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// BatchMaxAge returns the batch age threshold.
func (c Config) BatchMaxAge() time.Duration {
	return time.Duration(c.BatchMaxAgeMS) * time.Millisecond
}

// WriterBackoff returns the initial retry backoff.
func (c Config) WriterBackoff() time.Duration {
	return time.Duration(c.WriterBackoffMS) * time.Millisecond
}

// WriterBackoffCap returns the retry backoff ceiling.
func (c Config) WriterBackoffCap() time.Duration {
	return time.Duration(c.WriterBackoffCapMS) * time.Millisecond
}

// WriteTimeout returns the per-attempt store timeout.
func (c Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ShutdownGrace returns the writer drain budget at shutdown.
func (c Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
