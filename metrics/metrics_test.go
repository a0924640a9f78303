package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("/transactions", "POST", 201, 20*time.Millisecond)
	m.TransactionRecorded(5000)
	m.ImportRows(3, 1)
	m.FeedEvent("INSERT")
	m.StreamClients(2)
	m.KafkaPublish(false)
	m.Reminders("sms", 4, 1)
	m.FraudAlerts(1, 0, 2)

	body := scrape(t, m)
	for _, want := range []string{
		`levy_http_requests_total{method="POST",route="/transactions",status="201"} 1`,
		`levy_transactions_recorded_total 1`,
		`levy_transactions_recorded_naira_total 5000`,
		`levy_import_rows_total{result="ok"} 3`,
		`levy_import_rows_total{result="failed"} 1`,
		`levy_feed_events_total{type="INSERT"} 1`,
		`levy_stream_clients 2`,
		`levy_kafka_publish_total{result="fail"} 1`,
		`levy_reminders_total{channel="sms",result="sent"} 4`,
		`levy_fraud_alerts_total{risk="high"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", "GET", 200, time.Millisecond)
	m.TransactionRecorded(1)
	m.ImportRows(1, 1)
	m.FeedEvent("INSERT")
	m.StreamClients(1)
	m.KafkaPublish(true)
	m.Reminders("sms", 1, 0)
	m.FraudAlerts(1, 1, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("nil handler status %d", rec.Code)
	}
}
