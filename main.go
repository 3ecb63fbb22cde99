package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"iot-ingestor/internal/config"
	"iot-ingestor/internal/observability/metrics"
	"iot-ingestor/internal/telemetry/application"
	telemetry "iot-ingestor/internal/telemetry/domain"
	telemetrypostgres "iot-ingestor/internal/telemetry/infrastructure/postgres"
	mqttingest "iot-ingestor/internal/telemetry/interfaces/mqtt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.StoreMaxConns)

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	queue := application.NewQueue(cfg.QueueCapacity)
	metrics.RegisterQueueDepth(queue.Len)

	repo := telemetrypostgres.NewReadingRepository(db)
	writer, err := application.NewWriter(repo, logger,
		application.WithMaxAttempts(cfg.WriterMaxAttempts),
		application.WithBackoff(cfg.WriterBackoff(), cfg.WriterBackoffCap()),
		application.WithWriteTimeout(cfg.WriteTimeout()),
	)
	if err != nil {
		logger.Fatalf("writer error: %v", err)
	}

	batches := make(chan []telemetry.Reading, cfg.WriterPoolSize)
	batcher, err := application.NewBatcher(queue, batches, cfg.BatchMaxSize, cfg.BatchMaxAge(), logger)
	if err != nil {
		logger.Fatalf("batcher error: %v", err)
	}

	receiver, err := mqttingest.NewReceiver(cfg.BrokerURL(), cfg.MQTTClientID, cfg.MQTTTopic, queue, logger)
	if err != nil {
		logger.Fatalf("receiver error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The writer pool drains on a separate context so batches still in
	// flight at shutdown get the configured grace period.
	drainCtx, drainCancel := context.WithCancel(context.Background())
	defer drainCancel()

	var workers sync.WaitGroup
	for i := 0; i < cfg.WriterPoolSize; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			writer.Run(drainCtx, batches)
		}()
	}
	workers.Add(1)
	go func() {
		defer workers.Done()
		batcher.Run()
	}()

	if err := receiver.Start(ctx); err != nil {
		logger.Fatalf("receiver start error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("http server error: %v", err)
		}
	}()

	logger.Printf("ingestor started: broker=%s topic=%s queue=%d batch=%d/%s writers=%d",
		cfg.BrokerURL(), cfg.MQTTTopic, cfg.QueueCapacity, cfg.BatchMaxSize, cfg.BatchMaxAge(), cfg.WriterPoolSize)

	<-ctx.Done()
	logger.Printf("shutdown signal received")

	// Stop order: receiver first so nothing new enters, then close the queue
	// so the batcher force-flushes and the writers drain within the grace
	// period. Unacked broker messages will be redelivered.
	receiver.Stop()
	queue.Close()

	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		logger.Printf("pipeline drained")
	case <-time.After(cfg.ShutdownGrace()):
		logger.Printf("shutdown grace expired, abandoning in-flight batches")
		drainCancel()
		<-drained
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Printf("ingestor stopped")
}
