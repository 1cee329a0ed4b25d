package interfaces

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"stockflow/internal/service/inventory/application"
	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/infrastructure"
	"stockflow/internal/service/inventory/infrastructure/adapter"
)

func newTestServer(t *testing.T) (*httptest.Server, *infrastructure.MemoryStockStore, *adapter.MemoryBroker) {
	t.Helper()
	store := infrastructure.NewMemoryStockStore(domain.StockDefaults{Name: "token", InitialQuantity: 100})
	broker := adapter.NewMemoryBroker()
	service := application.NewInventoryService(store, broker, domain.DefaultTopics(), noop.NewTracerProvider().Tracer("test"))

	reg := prometheus.NewRegistry()
	recorder := infrastructure.NewPrometheusRecorder(reg)
	handler := NewInventoryHandler(service, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(recorder.InstrumentHandler(TraceMiddleware(mux)))
	t.Cleanup(srv.Close)
	return srv, store, broker
}

func doRequest(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.String()
}

func TestInventoryHandler_GetInventory(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.Seed(1, "token", 6)

	code, body := doRequest(t, http.MethodGet, srv.URL+"/inventory/1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"id":1,"name":"token","quantity":6}`, body)

	code, body = doRequest(t, http.MethodGet, srv.URL+"/inventory/2", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"Item not found"}`, body)

	code, _ = doRequest(t, http.MethodGet, srv.URL+"/inventory/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInventoryHandler_AdjustInventory(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.Seed(1, "token", 2)

	code, body := doRequest(t, http.MethodPut, srv.URL+"/inventory/1", `{"quantity_change":-5}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"id":1,"name":"token","quantity":-3}`, body)

	code, body = doRequest(t, http.MethodPut, srv.URL+"/inventory/1", `{}`)
	assert.Equal(t, http.StatusOK, code, "missing quantity_change means no change")
	assert.JSONEq(t, `{"id":1,"name":"token","quantity":-3}`, body)

	code, body = doRequest(t, http.MethodPut, srv.URL+"/inventory/9", `{"quantity_change":1}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"Item not found"}`, body)

	code, _ = doRequest(t, http.MethodPut, srv.URL+"/inventory/1", `{"quantity_change":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInventoryHandler_UpdateInventory(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
		wantQty  int64
	}{
		{"credit", `{"item_id":1,"quantity_change":4}`, http.StatusOK, `{"message":"Inventory updated successfully"}`, 9},
		{"debit to zero", `{"item_id":1,"quantity_change":-5}`, http.StatusOK, `{"message":"Inventory updated successfully"}`, 0},
		{"insufficient", `{"item_id":1,"quantity_change":-6}`, http.StatusInternalServerError, `{"error":"Inventory update failed","message":"Insufficient stock"}`, 5},
		{"unknown item", `{"item_id":7,"quantity_change":1}`, http.StatusNotFound, `{"error":"Item not found"}`, 5},
		{"missing item id", `{"quantity_change":1}`, http.StatusBadRequest, `{"error":"invalid request body"}`, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store, _ := newTestServer(t)
			store.Seed(1, "token", 5)

			code, body := doRequest(t, http.MethodPost, srv.URL+"/inventory/update", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.JSONEq(t, tt.wantBody, body)

			rec, err := store.Get(t.Context(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, rec.Quantity)
		})
	}
}

func TestInventoryHandler_MetricsAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	code, _ := doRequest(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	doRequest(t, http.MethodGet, srv.URL+"/inventory/404", "")
	code, body := doRequest(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `inventory_http_requests_total{code="404",method="get"} 1`)
}

func TestInventoryHandler_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)
	code, _ := doRequest(t, http.MethodDelete, srv.URL+"/inventory/1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}
