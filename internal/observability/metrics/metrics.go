package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ingestor_"

	reasonDecode     = "decode"
	reasonValidation = "validation"

	dropReasonFatal     = "fatal"
	dropReasonExhausted = "retry_exhausted"
	dropReasonShutdown  = "shutdown"
)

var (
	registerOnce sync.Once

	messagesReceived prometheus.Counter
	messagesValid    prometheus.Counter
	messagesInvalid  *prometheus.CounterVec

	queueBlocked prometheus.Counter

	batchesFlushed   prometheus.Counter
	rowsInserted     prometheus.Counter
	rowsDeduplicated prometheus.Counter
	writeFailures    prometheus.Counter
	batchesDropped   *prometheus.CounterVec
	writeLatency     prometheus.Histogram
	batchSize        prometheus.Gauge
)

// Init registers the pipeline metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		messagesReceived = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "messages_total",
				Help: "Total messages received from the broker",
			},
		)
		messagesValid = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "valid_messages_total",
				Help: "Total messages accepted into the queue after validation",
			},
		)
		messagesInvalid = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invalid_messages_total",
				Help: "Total messages dropped before the queue, by reason",
			},
			[]string{"reason"},
		)

		queueBlocked = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "queue_full_total",
				Help: "Total backpressure events where the queue was full and the receiver blocked",
			},
		)

		batchesFlushed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "batches_flushed_total",
				Help: "Total batches committed to the store",
			},
		)
		rowsInserted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_inserted_total",
				Help: "Total rows inserted into the store",
			},
		)
		rowsDeduplicated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_deduplicated_total",
				Help: "Total rows skipped by the store uniqueness constraint",
			},
		)
		writeFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "db_failures_total",
				Help: "Total failed batch insert attempts",
			},
		)
		batchesDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batches_dropped_total",
				Help: "Total batches dropped without being stored, by reason",
			},
			[]string{"reason"},
		)
		writeLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Time taken to persist a batch into the store",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
		)
		batchSize = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "batch_size",
				Help: "Size of the most recently flushed batch",
			},
		)

		prometheus.MustRegister(
			messagesReceived,
			messagesValid,
			messagesInvalid,
			queueBlocked,
			batchesFlushed,
			rowsInserted,
			rowsDeduplicated,
			writeFailures,
			batchesDropped,
			writeLatency,
			batchSize,
		)
	})
}

// RegisterQueueDepth exposes the current queue depth as a gauge.
func RegisterQueueDepth(depth func() int) {
	if depth == nil {
		return
	}
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "queue_depth",
			Help: "Readings currently buffered between receiver and batcher",
		},
		func() float64 {
			return float64(depth())
		},
	))
}

// IncMessageReceived counts an inbound broker message.
func IncMessageReceived() {
	if messagesReceived != nil {
		messagesReceived.Inc()
	}
}

// IncMessageValid counts a reading accepted into the queue.
func IncMessageValid() {
	if messagesValid != nil {
		messagesValid.Inc()
	}
}

// IncMessageInvalid counts a dropped message by reason.
func IncMessageInvalid(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if messagesInvalid != nil {
		messagesInvalid.WithLabelValues(reason).Inc()
	}
}

// IncQueueBlocked counts a backpressure event on the full queue.
func IncQueueBlocked() {
	if queueBlocked != nil {
		queueBlocked.Inc()
	}
}

// ObserveBatchCommit records a committed batch: its size, how many rows the
// store actually inserted versus skipped as duplicates, and the persistence
// latency.
func ObserveBatchCommit(size int, inserted, deduplicated int64, duration time.Duration) {
	if batchesFlushed != nil {
		batchesFlushed.Inc()
	}
	if rowsInserted != nil && inserted > 0 {
		rowsInserted.Add(float64(inserted))
	}
	if rowsDeduplicated != nil && deduplicated > 0 {
		rowsDeduplicated.Add(float64(deduplicated))
	}
	if writeLatency != nil {
		writeLatency.Observe(duration.Seconds())
	}
	if batchSize != nil {
		batchSize.Set(float64(size))
	}
}

// IncWriteFailure counts one failed insert attempt.
func IncWriteFailure() {
	if writeFailures != nil {
		writeFailures.Inc()
	}
}

// IncBatchDropped counts a batch that will never be stored.
func IncBatchDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if batchesDropped != nil {
		batchesDropped.WithLabelValues(reason).Inc()
	}
}

// Exported label constants for callers.
const (
	ReasonDecode     = reasonDecode
	ReasonValidation = reasonValidation

	DropReasonFatal     = dropReasonFatal
	DropReasonExhausted = dropReasonExhausted
	DropReasonShutdown  = dropReasonShutdown
)
