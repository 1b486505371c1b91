package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"FeedbackAnalyzer/internal/ports"
)

// Metrics exposes pipeline and offload pool counters to Prometheus.
type Metrics struct {
	processed    *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	bulk         *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	inFlight     prometheus.Gauge
	callDuration prometheus.Histogram
	rejected     prometheus.Counter
}

var (
	_ ports.PipelineMetrics = (*Metrics)(nil)
	_ ports.ExecutorMetrics = (*Metrics)(nil)
)

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_processed_total",
			Help: "Feedback items processed, by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_transform_fallback_total",
			Help: "Enrichment transforms replaced by their fallback value.",
		}, []string{"transform"}),
		bulk: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_bulk_comments_total",
			Help: "Bulk submission comments, by outcome.",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_queue_depth",
			Help: "Oracle calls waiting for a worker.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_inflight_calls",
			Help: "Oracle calls currently running.",
		}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_call_duration_seconds",
			Help:    "Wall time of a single oracle call.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracle_rejected_total",
			Help: "Oracle calls rejected because the queue was full.",
		}),
	}

	reg.MustRegister(m.processed, m.fallbacks, m.bulk, m.queueDepth, m.inFlight, m.callDuration, m.rejected)
	return m
}

func (m *Metrics) ItemProcessed(outcome string) { m.processed.WithLabelValues(outcome).Inc() }

func (m *Metrics) TransformFallback(transform string) { m.fallbacks.WithLabelValues(transform).Inc() }

func (m *Metrics) BulkComment(outcome string) { m.bulk.WithLabelValues(outcome).Inc() }

func (m *Metrics) QueueDepth(n int) { m.queueDepth.Set(float64(n)) }

func (m *Metrics) InFlight(n int) { m.inFlight.Set(float64(n)) }

func (m *Metrics) CallDuration(seconds float64) { m.callDuration.Observe(seconds) }

func (m *Metrics) Rejected() { m.rejected.Inc() }

// Nop discards everything; used when no registry is wired.
type Nop struct{}

var (
	_ ports.PipelineMetrics = Nop{}
	_ ports.ExecutorMetrics = Nop{}
)

func (Nop) ItemProcessed(string)     {}
func (Nop) TransformFallback(string) {}
func (Nop) BulkComment(string)       {}
func (Nop) QueueDepth(int)           {}
func (Nop) InFlight(int)             {}
func (Nop) CallDuration(float64)     {}
func (Nop) Rejected()                {}
