package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/platform/httpx"
	"github.com/printhouse/orders-api/internal/platform/pagination"
	"github.com/printhouse/orders-api/internal/platform/requestctx"
	"github.com/printhouse/orders-api/internal/services"
)

const (
	maxOrderBodySize = 256 * 1024
	maxNoteBodySize  = 16 * 1024
	maxBulkBodySize  = 128 * 1024
)

var orderPageOptions = pagination.Options{
	DefaultPageSize: pagination.DefaultPageSize,
	MaxPageSize:     pagination.DefaultMaxPageSize,
}

type createOrderRequest struct {
	OrderNumber    *int64             `json:"order_number"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	ValueCents     int64              `json:"value_cents"`
	ShippingCents  int64              `json:"shipping_cents"`
	ShippingMethod string             `json:"shipping_method"`
	ShippingLabel  string             `json:"shipping_label"`
	Customer       customerPayload    `json:"customer"`
	Shipping       shippingPayload    `json:"shipping"`
	Items          []orderItemPayload `json:"items"`
	OwnerID        string             `json:"owner_id"`
	Metadata       map[string]any     `json:"metadata"`
	Notes          string             `json:"notes"`
}

type updateOrderRequest struct {
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	ValueCents     *int64             `json:"value_cents"`
	ShippingCents  *int64             `json:"shipping_cents"`
	ShippingMethod *string            `json:"shipping_method"`
	ShippingLabel  *string            `json:"shipping_label"`
	Customer       *customerPayload   `json:"customer"`
	Shipping       *shippingPayload   `json:"shipping"`
	Items          []orderItemPayload `json:"items"`
	Metadata       map[string]any     `json:"metadata"`
	StatusID       *int               `json:"status_id"`
	Notes          string             `json:"notes"`
}

func (r updateOrderRequest) hasFieldEdits() bool {
	return r.Title != nil || r.Description != nil || r.ValueCents != nil || r.ShippingCents != nil ||
		r.ShippingMethod != nil || r.ShippingLabel != nil || r.Customer != nil || r.Shipping != nil ||
		r.Items != nil || r.Metadata != nil
}

type transitionRequest struct {
	StatusID   *int   `json:"status_id"`
	Notes      string `json:"notes"`
	Sequencing string `json:"sequencing"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type bulkTransitionRequest struct {
	OrderIDs []string `json:"order_ids"`
	StatusID *int     `json:"status_id"`
	Notes    string   `json:"notes"`
}

// OrderHandlers exposes the back-office order endpoints.
type OrderHandlers struct {
	orders services.OrderService
	bulk   services.BulkTransitionRunner
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, bulk services.BulkTransitionRunner) *OrderHandlers {
	return &OrderHandlers{
		orders: orders,
		bulk:   bulk,
	}
}

// Routes registers the /orders endpoints. Identity must already be on the
// request context; each route checks its own capability.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	canView := auth.RequireCapability(auth.CapOrdersView, auth.CapOrdersViewOwn)
	canEdit := auth.RequireCapability(auth.CapOrdersEdit)
	canDelete := auth.RequireCapability(auth.CapOrdersDelete)
	canChangeStatus := auth.RequireCapability(auth.CapOrdersChangeStatus)

	r.With(canView).Get("/orders", h.listOrders)
	r.With(canEdit).Post("/orders", h.createOrder)
	r.With(canChangeStatus).Post("/orders:bulk-status", h.bulkTransition)
	r.With(canView).Get("/orders/{orderID}", h.getOrder)
	r.With(canEdit).Put("/orders/{orderID}", h.updateOrder)
	r.With(canDelete).Delete("/orders/{orderID}", h.deleteOrder)
	r.With(canChangeStatus).Post("/orders/{orderID}:transition", h.transitionOrder)
	r.With(canView).Get("/orders/{orderID}/history", h.orderHistory)
	r.With(canEdit).Post("/orders/{orderID}/notes", h.addNote)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := pagination.Parse(query, orderPageOptions)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	statusIDs, err := parseIntValues(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status "+err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		StatusIDs:    statusIDs,
		SKU:          strings.TrimSpace(query.Get("sku")),
		CustomerName: strings.TrimSpace(query.Get("customer")),
		Pagination: domain.Pagination{
			PageSize:  page.PageSize,
			PageToken: page.PageToken,
		},
	}
	if raw := strings.TrimSpace(query.Get("order_number")); raw != "" {
		number, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || number <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_number must be a positive integer", http.StatusBadRequest))
			return
		}
		filter.OrderNumber = &number
	}
	if raw := strings.TrimSpace(query.Get("issued_from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "issued_from "+err.Error(), http.StatusBadRequest))
			return
		}
		filter.IssuedOn.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("issued_to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "issued_to "+err.Error(), http.StatusBadRequest))
			return
		}
		// A bare date covers the whole day.
		if len(raw) == len(time.DateOnly) {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		filter.IssuedOn.To = &ts
	}
	if !identity.Can(auth.CapOrdersView) {
		filter.OwnerID = strings.TrimSpace(identity.UID)
	}

	result, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(result.Items))
	for _, order := range result.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		Total:         result.Total,
		NextPageToken: strings.TrimSpace(result.NextPageToken),
	})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, maxOrderBodySize, &req) {
		return
	}

	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		ownerID = strings.TrimSpace(identity.UID)
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		OrderNumber:    req.OrderNumber,
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		ValueCents:     req.ValueCents,
		ShippingCents:  req.ShippingCents,
		ShippingMethod: strings.TrimSpace(req.ShippingMethod),
		ShippingLabel:  strings.TrimSpace(req.ShippingLabel),
		Customer:       services.OrderCustomer(req.Customer),
		Shipping:       services.ShippingAddress(req.Shipping),
		Items:          itemsToDomain(req.Items),
		OwnerID:        ownerID,
		Source:         domain.OrderSourceBackoffice,
		Metadata:       cloneMap(req.Metadata),
		Notes:          req.Notes,
		Actor:          actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.visibleOrder(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateOrderRequest
	if !decodeBody(w, r, maxOrderBodySize, &req) {
		return
	}
	if req.StatusID != nil && !identity.Can(auth.CapOrdersChangeStatus) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_permissions", "changing the status requires orders.change_status", http.StatusForbidden))
		return
	}
	if !req.hasFieldEdits() && req.StatusID == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "no editable fields provided", http.StatusBadRequest))
		return
	}

	actor := actorFromIdentity(identity)
	cmd := services.UpdateOrderCommand{
		OrderID:        orderID,
		Title:          req.Title,
		Description:    req.Description,
		ValueCents:     req.ValueCents,
		ShippingCents:  req.ShippingCents,
		ShippingMethod: req.ShippingMethod,
		ShippingLabel:  req.ShippingLabel,
		Items:          itemsToDomain(req.Items),
		Metadata:       cloneMap(req.Metadata),
		Actor:          actor,
	}
	if req.Customer != nil {
		customer := services.OrderCustomer(*req.Customer)
		cmd.Customer = &customer
	}
	if req.Shipping != nil {
		shipping := services.ShippingAddress(*req.Shipping)
		cmd.Shipping = &shipping
	}

	if req.StatusID == nil {
		order, err := h.orders.UpdateFields(ctx, cmd)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
		return
	}

	// The status change goes first: an unconfirmed change must leave the
	// order exactly as it was, field edits included.
	if req.hasFieldEdits() {
		if err := cmd.Validate(); err != nil {
			writeOrderError(ctx, w, err)
			return
		}
	}
	result, err := h.orders.TransitionStatus(ctx, services.TransitionCommand{
		OrderID:    orderID,
		StatusID:   *req.StatusID,
		Notes:      req.Notes,
		Actor:      actor,
		Sequencing: services.PersistThenNotify,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if req.hasFieldEdits() {
		order, err := h.orders.UpdateFields(ctx, cmd)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		result.Order = order
	}
	writeJSONResponse(w, http.StatusOK, buildTransitionResponse(result))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(ctx, orderID); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if !decodeBody(w, r, maxNoteBodySize, &req) {
		return
	}
	if req.StatusID == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status_id is required", http.StatusBadRequest))
		return
	}
	sequencing := services.Sequencing(strings.ToLower(strings.TrimSpace(req.Sequencing)))
	if sequencing != "" && !sequencing.Valid() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sequencing must be persist_then_notify or notify_then_persist", http.StatusBadRequest))
		return
	}

	result, err := h.orders.TransitionStatus(ctx, services.TransitionCommand{
		OrderID:    orderID,
		StatusID:   *req.StatusID,
		Notes:      req.Notes,
		Actor:      actorFromIdentity(identity),
		Sequencing: sequencing,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTransitionResponse(result))
}

func (h *OrderHandlers) orderHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, ok := h.visibleOrder(w, r)
	if !ok {
		return
	}
	records, err := h.orders.History(ctx, order.ID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	items := make([]transitionRecordPayload, 0, len(records))
	for _, record := range records {
		items = append(items, buildTransitionRecordPayload(record))
	}
	writeJSONResponse(w, http.StatusOK, historyResponse{Items: items})
}

func (h *OrderHandlers) addNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !decodeBody(w, r, maxNoteBodySize, &req) {
		return
	}
	record, err := h.orders.AddNote(ctx, services.AddNoteCommand{
		OrderID: orderID,
		Note:    req.Note,
		Actor:   actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildTransitionRecordPayload(record))
}

func (h *OrderHandlers) bulkTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bulk == nil {
		serviceUnavailable(ctx, w, "bulk_transition")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	runBulkTransition(w, r, h.bulk, actorFromIdentity(identity))
}

// runBulkTransition is shared by the staff and internal bulk routes.
func runBulkTransition(w http.ResponseWriter, r *http.Request, runner services.BulkTransitionRunner, actor services.Actor) {
	ctx := r.Context()
	var req bulkTransitionRequest
	if !decodeBody(w, r, maxBulkBodySize, &req) {
		return
	}
	if req.StatusID == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status_id is required", http.StatusBadRequest))
		return
	}

	report, err := runner.TransitionMany(ctx, services.BulkTransitionCommand{
		OrderIDs: req.OrderIDs,
		StatusID: *req.StatusID,
		Notes:    req.Notes,
		Actor:    actor,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	outcome := report.Outcome()
	status := http.StatusOK
	switch outcome {
	case services.BatchOutcomePartial:
		status = http.StatusMultiStatus
	case services.BatchOutcomeFailed:
		status = http.StatusInternalServerError
	}
	requestctx.Logger(ctx).Info("bulk status change finished",
		zap.String("runId", report.RunID),
		zap.Int("statusId", report.StatusID),
		zap.Int("successes", report.Successes),
		zap.Int("failures", report.Failures),
	)
	writeJSONResponse(w, status, bulkReportResponse{BatchReport: report, Outcome: string(outcome)})
}

// visibleOrder loads the order named in the path and hides orders the caller
// may not see behind a 404.
func (h *OrderHandlers) visibleOrder(w http.ResponseWriter, r *http.Request) (services.Order, bool) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return services.Order{}, false
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return services.Order{}, false
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return services.Order{}, false
	}
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return services.Order{}, false
	}
	if !identity.Can(auth.CapOrdersView) && !strings.EqualFold(strings.TrimSpace(order.OwnerID), strings.TrimSpace(identity.UID)) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return services.Order{}, false
	}
	return order, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var notifyErr *services.NotificationError
	switch {
	case errors.As(err, &notifyErr):
		httpx.WriteError(ctx, w, httpx.NewError("notification_failed", "external server did not confirm the change", http.StatusBadGateway).WithDetails(map[string]any{
			"summary":       notifyErr.Report.Summary(),
			"notifications": buildNotificationPayloads(notifyErr.Report.Results),
		}))
	case errors.Is(err, services.ErrNotificationFailed):
		httpx.WriteError(ctx, w, httpx.NewError("notification_failed", err.Error(), http.StatusBadGateway))
	case errors.Is(err, services.ErrInvalidStatus):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrIntegrationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrStatusNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("status_not_found", "status not found", http.StatusNotFound))
	case errors.Is(err, services.ErrTransitionNotAllowed):
		httpx.WriteError(ctx, w, httpx.NewError("transition_not_allowed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPersistenceFailed):
		requestctx.Logger(ctx).Error("order persistence failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("persistence_failed", "database error; the change was rolled back", http.StatusInternalServerError))
	default:
		requestctx.Logger(ctx).Error("order request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
