package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/printhouse/orders-api/internal/platform/httpx"
	"github.com/printhouse/orders-api/internal/platform/requestctx"
	"github.com/printhouse/orders-api/internal/services"
)

const maxIntegrationBodySize = 256 * 1024

// Operation names recorded in the integration call log.
const (
	integrationOpCreateOrder = "create_order"
	integrationOpListOrders  = "list_orders"
	integrationOpOrderStatus = "order_status"
	integrationOpCancelOrder = "cancel_order"
	integrationOpUpdateOrder = "update_order"
)

// IntegrationHandlers serves the storefront API. Callers are authenticated by
// API key in the group middleware.
type IntegrationHandlers struct {
	integration services.IntegrationService
	metrics     services.IntegrationMetrics
	counter     APICallCounter
	clock       func() time.Time
}

// APICallCounter exports integration call counts to the metrics pipeline.
type APICallCounter interface {
	RecordAPICall(ctx context.Context, operation string, failed bool)
}

// IntegrationOption customises IntegrationHandlers.
type IntegrationOption func(*IntegrationHandlers)

// WithIntegrationClock overrides the clock used to time calls.
func WithIntegrationClock(clock func() time.Time) IntegrationOption {
	return func(h *IntegrationHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithIntegrationCallCounter also reports each call to counter.
func WithIntegrationCallCounter(counter APICallCounter) IntegrationOption {
	return func(h *IntegrationHandlers) {
		h.counter = counter
	}
}

// NewIntegrationHandlers constructs IntegrationHandlers. metrics may be nil.
func NewIntegrationHandlers(integration services.IntegrationService, metrics services.IntegrationMetrics, opts ...IntegrationOption) *IntegrationHandlers {
	h := &IntegrationHandlers{
		integration: integration,
		metrics:     metrics,
		clock:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /integration endpoints.
func (h *IntegrationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders", h.recorded(integrationOpCreateOrder, h.createOrder))
	r.Get("/orders", h.recorded(integrationOpListOrders, h.listOrders))
	r.Get("/orders/{orderNumber}/status", h.recorded(integrationOpOrderStatus, h.orderStatus))
	r.Post("/orders/{orderNumber}/cancel", h.recorded(integrationOpCancelOrder, h.cancelOrder))
	r.Put("/orders/{orderNumber}", h.recorded(integrationOpUpdateOrder, h.updateOrder))
	r.Get("/metrics", h.metricsSnapshot)
	r.Delete("/metrics", h.resetMetrics)
}

// recorded logs the call's latency and outcome into the call log.
func (h *IntegrationHandlers) recorded(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil && h.counter == nil {
			next(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := h.clock()
		next(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		failed := status >= http.StatusBadRequest
		if h.metrics != nil {
			h.metrics.Record(services.IntegrationCall{
				Operation: operation,
				At:        start,
				Duration:  h.clock().Sub(start),
				Failed:    failed,
			})
		}
		if h.counter != nil {
			h.counter.RecordAPICall(r.Context(), operation, failed)
		}
	}
}

type integrationOrderRequest struct {
	OrderNumber    int64              `json:"order_number"`
	ValueCents     int64              `json:"value_cents"`
	ShippingCents  int64              `json:"shipping_cents"`
	ShippingMethod string             `json:"shipping_method"`
	ShippingLabel  string             `json:"shipping_label"`
	Customer       customerPayload    `json:"customer"`
	Shipping       shippingPayload    `json:"shipping"`
	Items          []orderItemPayload `json:"items"`
	Notes          string             `json:"notes"`
	Metadata       map[string]any     `json:"metadata"`
}

type integrationOrderCreatedResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	StatusID    int    `json:"status_id"`
}

type integrationOrderSummaryPayload struct {
	ID           string `json:"id"`
	OrderNumber  int64  `json:"order_number"`
	Status       string `json:"status"`
	CustomerName string `json:"customer_name"`
	ValueCents   int64  `json:"value_cents"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

type integrationOrderListResponse struct {
	Orders     []integrationOrderSummaryPayload `json:"orders"`
	Total      int                              `json:"total"`
	Page       int                              `json:"page"`
	Limit      int                              `json:"limit"`
	TotalPages int                              `json:"total_pages"`
}

type integrationStatusResponse struct {
	OrderNumber int64  `json:"order_number"`
	StatusID    int    `json:"status_id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type integrationCancelRequest struct {
	Reason string `json:"reason"`
}

type integrationUpdateResponse struct {
	Order         orderPayload `json:"order"`
	UpdatedFields []string     `json:"updated_fields"`
}

type integrationMetricsResponse struct {
	TotalCalls       int64            `json:"total_calls"`
	CallsByOperation map[string]int64 `json:"calls_by_operation"`
	TotalErrors      int64            `json:"total_errors"`
	LastHourCalls    int              `json:"last_hour_calls"`
	AverageLatencyMS float64          `json:"average_latency_ms"`
	Since            string           `json:"since"`
}

func (h *IntegrationHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.integration == nil {
		serviceUnavailable(ctx, w, "integration")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req integrationOrderRequest
	if !decodeBody(w, r, maxIntegrationBodySize, &req) {
		return
	}

	order, err := h.integration.CreateOrder(ctx, services.IntegrationOrderCommand{
		OrderNumber:    req.OrderNumber,
		ValueCents:     req.ValueCents,
		ShippingCents:  req.ShippingCents,
		ShippingMethod: strings.TrimSpace(req.ShippingMethod),
		ShippingLabel:  strings.TrimSpace(req.ShippingLabel),
		Customer:       services.OrderCustomer(req.Customer),
		Shipping:       services.ShippingAddress(req.Shipping),
		Items:          itemsToDomain(req.Items),
		Notes:          req.Notes,
		Metadata:       cloneMap(req.Metadata),
		Actor:          actorFromIdentity(identity),
	})
	if err != nil {
		writeIntegrationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, integrationOrderCreatedResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		StatusID:    order.StatusID,
	})
}

func (h *IntegrationHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.integration == nil {
		serviceUnavailable(ctx, w, "integration")
		return
	}
	query := r.URL.Query()
	page, err := optionalPositiveInt(query.Get("page"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page must be a positive integer", http.StatusBadRequest))
		return
	}
	limit, err := optionalPositiveInt(query.Get("limit"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
		return
	}

	result, err := h.integration.ListOrders(ctx, page, limit)
	if err != nil {
		writeIntegrationError(ctx, w, err)
		return
	}
	orders := make([]integrationOrderSummaryPayload, 0, len(result.Orders))
	for _, order := range result.Orders {
		orders = append(orders, integrationOrderSummaryPayload{
			ID:           order.ID,
			OrderNumber:  order.OrderNumber,
			Status:       order.Status,
			CustomerName: order.CustomerName,
			ValueCents:   order.ValueCents,
			CreatedAt:    formatTime(order.CreatedAt),
			UpdatedAt:    formatTime(order.UpdatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, integrationOrderListResponse{
		Orders:     orders,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	})
}

func (h *IntegrationHandlers) orderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.integration == nil {
		serviceUnavailable(ctx, w, "integration")
		return
	}
	number, ok := orderNumberParam(w, r)
	if !ok {
		return
	}
	status, err := h.integration.OrderStatus(ctx, number)
	if err != nil {
		writeIntegrationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, integrationStatusResponse{
		OrderNumber: status.OrderNumber,
		StatusID:    status.StatusID,
		Status:      status.Status,
		CreatedAt:   formatTime(status.CreatedAt),
		UpdatedAt:   formatTime(status.UpdatedAt),
	})
}

func (h *IntegrationHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.integration == nil {
		serviceUnavailable(ctx, w, "integration")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	number, ok := orderNumberParam(w, r)
	if !ok {
		return
	}
	var req integrationCancelRequest
	if !decodeBody(w, r, maxNoteBodySize, &req) {
		return
	}

	result, err := h.integration.CancelOrder(ctx, services.IntegrationCancelCommand{
		OrderNumber: number,
		Reason:      req.Reason,
		Actor:       actorFromIdentity(identity),
	})
	if err != nil {
		writeIntegrationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTransitionResponse(result))
}

func (h *IntegrationHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.integration == nil {
		serviceUnavailable(ctx, w, "integration")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	number, ok := orderNumberParam(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if !decodeBody(w, r, maxIntegrationBodySize, &fields) {
		return
	}

	result, err := h.integration.UpdateOrder(ctx, services.IntegrationUpdateCommand{
		OrderNumber: number,
		Fields:      fields,
		Actor:       actorFromIdentity(identity),
	})
	if err != nil {
		writeIntegrationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, integrationUpdateResponse{
		Order:         buildOrderPayload(result.Order),
		UpdatedFields: result.UpdatedFields,
	})
}

func (h *IntegrationHandlers) metricsSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.metrics == nil {
		serviceUnavailable(ctx, w, "integration_metrics")
		return
	}
	snapshot := h.metrics.Snapshot(h.clock())
	writeJSONResponse(w, http.StatusOK, integrationMetricsResponse{
		TotalCalls:       snapshot.TotalCalls,
		CallsByOperation: snapshot.CallsByOperation,
		TotalErrors:      snapshot.TotalErrors,
		LastHourCalls:    snapshot.LastHourCalls,
		AverageLatencyMS: float64(snapshot.AverageLatency.Microseconds()) / 1000,
		Since:            formatTime(snapshot.Since),
	})
}

func (h *IntegrationHandlers) resetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		serviceUnavailable(r.Context(), w, "integration_metrics")
		return
	}
	h.metrics.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func orderNumberParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	number, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || number <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order number must be a positive integer", http.StatusBadRequest))
		return 0, false
	}
	return number, true
}

// optionalPositiveInt returns 0 for an empty value so the service applies its default.
func optionalPositiveInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return value, nil
}

func writeIntegrationError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrOrderConflict) {
		requestctx.Logger(ctx).Info("duplicate storefront order", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "an order with this number already exists", http.StatusConflict))
		return
	}
	writeOrderError(ctx, w, err)
}
