package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/inventory/application"
	"stockflow/internal/service/inventory/domain"
)

const maxBodyBytes = 1 << 20

// InventoryHandler 封装了库存服务的 HTTP 处理器
type InventoryHandler struct {
	service *application.InventoryService
	metrics http.Handler
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(service *application.InventoryService, metrics http.Handler) *InventoryHandler {
	return &InventoryHandler{service: service, metrics: metrics}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", h.metrics)
	mux.HandleFunc("GET /inventory/{item_id}", h.handleGetInventory)
	mux.HandleFunc("PUT /inventory/{item_id}", h.handleAdjustInventory)
	mux.HandleFunc("POST /inventory/update", h.handleUpdateInventory)
}

type adjustInventoryRequest struct {
	QuantityChange int64 `json:"quantity_change"`
}

type updateInventoryRequest struct {
	ItemID         *int64 `json:"item_id"`
	QuantityChange int64  `json:"quantity_change"`
}

func (h *InventoryHandler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	record, err := h.service.GetInventory(r.Context(), itemID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *InventoryHandler) handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseItemID(w, r)
	if !ok {
		return
	}
	var req adjustInventoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	record, err := h.service.AdjustInventory(r.Context(), itemID, req.QuantityChange)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *InventoryHandler) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	var req updateInventoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.ItemID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	_, err := h.service.UpdateInventory(r.Context(), *req.ItemID, req.QuantityChange)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Inventory updated successfully"})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Inventory update failed", "message": "Insufficient stock"})
	default:
		writeStoreError(w, r, err)
	}
}

func parseItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(r.PathValue("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return 0, false
	}
	return itemID, true
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrItemNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
		return
	}
	logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("inventory request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stock store unavailable"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// TraceMiddleware 提取上游 trace 上下文，并把带请求信息的 logger 放进 context。
// trace_id 由 logger.Ctx 在记录时附加。
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		l := zlog.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
	})
}
