package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec

	stageTotal         *prometheus.CounterVec
	imagesDescribed    *prometheus.CounterVec
	chunksIndexedTotal *prometheus.CounterVec
	chunksSkippedTotal *prometheus.CounterVec
	imagesDroppedTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "pipeline_stage_total",
			Help:      "Total completed pipeline stages by stage name.",
		},
		[]string{"service", "stage"},
	)
	imagesDescribed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "images_described_total",
			Help:      "Total image description attempts by outcome.",
		},
		[]string{"service", "status"},
	)
	chunksIndexedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks embedded and upserted into the index.",
		},
		[]string{"service"},
	)
	chunksSkippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "chunks_skipped_total",
			Help:      "Total chunks skipped because embedding failed.",
		},
		[]string{"service"},
	)
	imagesDroppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "worker",
			Name:      "images_dropped_total",
			Help:      "Total image descriptors dropped for unknown page numbers.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		queueLag,
		stageTotal,
		imagesDescribed,
		chunksIndexedTotal,
		chunksSkippedTotal,
		imagesDroppedTotal,
	)

	return &WorkerMetrics{
		registry:           registry,
		processTotal:       processTotal,
		processDuration:    processDuration,
		processInFlight:    processInFlight,
		queueLag:           queueLag,
		stageTotal:         stageTotal,
		imagesDescribed:    imagesDescribed,
		chunksIndexedTotal: chunksIndexedTotal,
		chunksSkippedTotal: chunksSkippedTotal,
		imagesDroppedTotal: imagesDroppedTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// StageCompleted counts state-machine transitions so a stalled pipeline
// shows up as a stage whose counter stops advancing.
func (m *WorkerMetrics) StageCompleted(service, stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.stageTotal.WithLabelValues(service, stage).Inc()
}

func (m *WorkerMetrics) ImageDescribed(service string, failed bool) {
	status := "success"
	if failed {
		status = "failed"
	}
	m.imagesDescribed.WithLabelValues(service, status).Inc()
}

func (m *WorkerMetrics) ImagesDropped(service string, count int) {
	if count <= 0 {
		return
	}
	m.imagesDroppedTotal.WithLabelValues(service).Add(float64(count))
}

func (m *WorkerMetrics) ChunksIndexed(service string, indexed, skipped int) {
	if indexed > 0 {
		m.chunksIndexedTotal.WithLabelValues(service).Add(float64(indexed))
	}
	if skipped > 0 {
		m.chunksSkippedTotal.WithLabelValues(service).Add(float64(skipped))
	}
}
