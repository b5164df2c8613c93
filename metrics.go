package webcodecs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports codec runtime counters to Prometheus. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	queueDepth   *prometheus.GaugeVec
	submitted    *prometheus.CounterVec
	results      *prometheus.CounterVec
	wouldBlock   prometheus.Counter
	taskDuration *prometheus.HistogramVec
	running      prometheus.Gauge
	poolOut      prometheus.Gauge
	poolOneOffs  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer, namespace, subsystem string) *Metrics {
	registerer = prometheus.WrapRegistererWith(
		prometheus.Labels{"component": "webcodecs"},
		registerer,
	)

	m := Metrics{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Accepted process and flush requests without a delivered result",
		}, []string{"kind"}),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submitted",
			Help:      "Number of accepted process and flush requests",
		}, []string{"kind", "op"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "results",
			Help:      "Number of results released to callers",
		}, []string{"kind", "result"}),
		wouldBlock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "would_block_retries",
			Help:      "Number of submit retries caused by engine backpressure",
		}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_duration_seconds",
			Help:      "Duration of engine work per dispatched task",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"kind", "op"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatcher_running",
			Help:      "Tasks currently executing on the worker dispatcher",
		}),
		poolOut: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool_checked_out",
			Help:      "Pooled scratch buffers currently held by tasks",
		}),
		poolOneOffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool_one_off",
			Help:      "Scratch buffers allocated outside the pool",
		}),
	}

	registerer.MustRegister(
		m.queueDepth,
		m.submitted,
		m.results,
		m.wouldBlock,
		m.taskDuration,
		m.running,
		m.poolOut,
		m.poolOneOffs,
	)

	return &m
}

func (m *Metrics) submit(kind Kind, op string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(kind.String(), op).Inc()
	m.queueDepth.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) dequeue(kind Kind, n int) {
	if m == nil || n == 0 {
		return
	}
	m.queueDepth.WithLabelValues(kind.String()).Sub(float64(n))
}

func (m *Metrics) result(kind Kind, result string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(kind.String(), result).Inc()
}

func (m *Metrics) retry() {
	if m == nil {
		return
	}
	m.wouldBlock.Inc()
}

func (m *Metrics) task(kind Kind, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(kind.String(), op).Observe(d.Seconds())
}

func (m *Metrics) dispatcherRunning(n int64) {
	if m == nil {
		return
	}
	m.running.Set(float64(n))
}

func (m *Metrics) poolCheckedOut(n int) {
	if m == nil {
		return
	}
	m.poolOut.Set(float64(n))
}

func (m *Metrics) poolOneOff() {
	if m == nil {
		return
	}
	m.poolOneOffs.Inc()
}
