// Package metrics owns the Prometheus collectors. All methods are safe on a
// nil *Metrics so callers never need to check.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "levy"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	recorded      prometheus.Counter
	recordedNaira prometheus.Counter
	imported      *prometheus.CounterVec
	feedEvents    *prometheus.CounterVec
	wsClients     prometheus.Gauge
	kafkaPublish  *prometheus.CounterVec
	reminders     *prometheus.CounterVec
	fraudAlerts   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_total",
			Help:      "Transactions recorded through the API.",
		}),
		recordedNaira: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_naira_total",
			Help:      "Sum of recorded transaction amounts in naira.",
		}),
		imported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Spreadsheet rows processed by result.",
		}, []string{"result"}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Change feed events received by type.",
		}, []string{"type"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket stream clients.",
		}),
		kafkaPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Feed events published to Kafka by result.",
		}, []string{"result"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Compliance reminders by channel and result.",
		}, []string{"channel", "result"}),
		fraudAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fraud_alerts_total",
			Help:      "Fraud alerts raised by risk level.",
		}, []string{"risk"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.recorded,
		m.recordedNaira,
		m.imported,
		m.feedEvents,
		m.wsClients,
		m.kafkaPublish,
		m.reminders,
		m.fraudAlerts,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) TransactionRecorded(amount float64) {
	if m == nil {
		return
	}
	m.recorded.Inc()
	if amount > 0 {
		m.recordedNaira.Add(amount)
	}
}

func (m *Metrics) ImportRows(ok, failed int) {
	if m == nil {
		return
	}
	m.imported.WithLabelValues("ok").Add(float64(ok))
	m.imported.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) FeedEvent(kind string) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) StreamClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) KafkaPublish(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.kafkaPublish.WithLabelValues(result).Inc()
}

func (m *Metrics) Reminders(channel string, sent, failed int) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(channel, "sent").Add(float64(sent))
	m.reminders.WithLabelValues(channel, "failed").Add(float64(failed))
}

func (m *Metrics) FraudAlerts(high, medium, low int) {
	if m == nil {
		return
	}
	m.fraudAlerts.WithLabelValues("high").Add(float64(high))
	m.fraudAlerts.WithLabelValues("medium").Add(float64(medium))
	m.fraudAlerts.WithLabelValues("low").Add(float64(low))
}
