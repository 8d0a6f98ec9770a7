// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "edgelink"

// Метрики редиректов origin
var (
	// RedirectsTotal обработанные запросы редиректа
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect requests handled by origin",
		},
		[]string{"result", "matched_by"}, // result: redirect, not_found
	)

	// HTTPRequestDuration длительность HTTP-запросов
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Метрики интеграции с провайдером
var (
	// ProviderRequestsTotal запросы к API провайдера
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Requests sent to the edge provider API",
		},
		[]string{"method", "code"},
	)

	// ProviderRetriesTotal повторы после ответа 429
	ProviderRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Provider API retries after rate limiting",
		},
	)

	// DeployOperationsTotal операции развёртывания
	DeployOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deploy_operations_total",
			Help:      "Deployment operations by result",
		},
		[]string{"op", "status"}, // status: success, failed, busy
	)

	// SnapshotLinks количество ссылок в последнем опубликованном снимке
	SnapshotLinks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_links",
			Help:      "Links in the last published snapshot",
		},
	)

	// SnapshotSizeBytes оценочный размер последнего опубликованного снимка
	SnapshotSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_size_bytes",
			Help:      "Estimated size of the last published snapshot",
		},
	)

	// HealthState текущее состояние edge-интеграции (1 у активного состояния)
	HealthState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_state",
			Help:      "Current edge integration state",
		},
		[]string{"state"},
	)

	// JobExecutionsTotal запуски периодических задач
	JobExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_executions_total",
			Help:      "Periodic job executions",
		},
		[]string{"job", "status"},
	)
)

var healthStates = []string{"wp-only", "active", "degraded"}

// SetHealthState выставляет 1 для текущего состояния и 0 для остальных
func SetHealthState(state string) {
	for _, s := range healthStates {
		v := 0.0
		if s == state {
			v = 1
		}
		HealthState.WithLabelValues(s).Set(v)
	}
}
