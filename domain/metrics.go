package domain

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

type Metrics struct {
	pagesFetched        prometheus.Counter
	transactionsEmitted prometheus.Counter
	transactionsWritten prometheus.Counter
	writeFailures       prometheus.Counter
	sessionsByStatus    *prometheus.CounterVec
	fetchInProgress     prometheus.Gauge
	lastSessionSeconds  prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := Metrics{
		pagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_pages_fetched", namespace),
			Help: "The total number of indexer pages fetched",
		}),
		transactionsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_transactions_emitted", namespace),
			Help: "The total number of normalized transactions emitted to the queues",
		}),
		transactionsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_transactions_written", namespace),
			Help: "The total number of transactions upserted into the local store",
		}),
		writeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_write_failures", namespace),
			Help: "The total number of dropped batches due to store write errors",
		}),
		sessionsByStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_sessions_total", namespace),
			Help: "The total number of finished sync sessions by terminal status",
		}, []string{"status"}),
		fetchInProgress: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_fetch_in_progress", namespace),
			Help: "Whether a sync session is currently running",
		}),
		lastSessionSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_last_session_duration_seconds", namespace),
			Help: "Wall clock duration of the most recently finished session",
		}),
	}
	return &m
}

func (m *Metrics) IncPagesFetched() {
	m.pagesFetched.Inc()
}

func (m *Metrics) AddTransactionsEmitted(count int) {
	m.transactionsEmitted.Add(float64(count))
}

func (m *Metrics) AddTransactionsWritten(count int) {
	m.transactionsWritten.Add(float64(count))
}

func (m *Metrics) IncWriteFailures() {
	m.writeFailures.Inc()
}

func (m *Metrics) SetFetchInProgress(active bool) {
	if active {
		m.fetchInProgress.Set(1)
	} else {
		m.fetchInProgress.Set(0)
	}
}

func (m *Metrics) ObserveSession(status entities.FetchStatus, seconds float64) {
	m.sessionsByStatus.WithLabelValues(string(status)).Inc()
	m.lastSessionSeconds.Set(seconds)
}
