package infrastructure

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveOutcome(domain.OutcomeReserved)
	rec.ObserveOutcome(domain.OutcomeReserved)
	rec.ObserveOutcome(domain.OutcomeOutOfStock)
	rec.ObserveEvent("payment_status", port.EventMalformed)
	rec.ObserveStoreError("reserve")

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.outcomes.WithLabelValues("reserved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.outcomes.WithLabelValues("ofs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.events.WithLabelValues("payment_status", "malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.storeErrors.WithLabelValues("reserve")))

	handler := rec.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/inventory/1", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.httpRequests.WithLabelValues("404", "get")))
}
