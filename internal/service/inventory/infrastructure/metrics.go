package infrastructure

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

// PrometheusRecorder 是 port.Recorder 的 Prometheus 实现
type PrometheusRecorder struct {
	outcomes     *prometheus.CounterVec
	events       *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// NewPrometheusRecorder 在 reg 上注册库存服务的全部计数器
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_outcomes_total",
			Help: "Outcome events published by the reservation engine.",
		}, []string{"status"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_events_total",
			Help: "Inbound events handled by the listener, by result.",
		}, []string{"topic", "result"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_store_errors_total",
			Help: "Stock store operations that failed.",
		}, []string{"operation"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_http_requests_total",
			Help: "HTTP requests served by the inventory API.",
		}, []string{"code", "method"}),
	}
}

func (r *PrometheusRecorder) ObserveOutcome(status domain.OutcomeStatus) {
	r.outcomes.WithLabelValues(string(status)).Inc()
}

func (r *PrometheusRecorder) ObserveEvent(topic string, result port.EventResult) {
	r.events.WithLabelValues(topic, string(result)).Inc()
}

func (r *PrometheusRecorder) ObserveStoreError(operation string) {
	r.storeErrors.WithLabelValues(operation).Inc()
}

// InstrumentHandler 统计每个 HTTP 请求的状态码与方法
func (r *PrometheusRecorder) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(r.httpRequests, next)
}
