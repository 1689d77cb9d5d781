package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/mail"
	"slices"
	"strings"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/pagination"
)

const (
	defaultIntegrationPageSize = 20
	maxCancelReasonLength      = 1000
)

// IntegrationOrderCommand is an order pushed by an external storefront.
type IntegrationOrderCommand struct {
	OrderNumber    int64
	ValueCents     int64
	ShippingCents  int64
	ShippingMethod string
	ShippingLabel  string
	Customer       OrderCustomer
	Shipping       ShippingAddress
	Items          []OrderItem
	Notes          string
	Metadata       map[string]any
	Actor          Actor
}

// IntegrationOrderStatus is the storefront view of an order's status.
type IntegrationOrderStatus struct {
	OrderNumber int64
	StatusID    int
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IntegrationOrderPage is a page/limit listing for storefronts.
type IntegrationOrderPage struct {
	Orders     []IntegrationOrderSummary
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// IntegrationOrderSummary is one line of a storefront listing.
type IntegrationOrderSummary struct {
	ID           string
	OrderNumber  int64
	Status       string
	CustomerName string
	ValueCents   int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IntegrationCancelCommand cancels an order on behalf of a storefront.
type IntegrationCancelCommand struct {
	OrderNumber int64
	Reason      string
	Actor       Actor
}

// IntegrationUpdateCommand carries storefront edits. Only allow-listed keys are applied.
type IntegrationUpdateCommand struct {
	OrderNumber int64
	Fields      map[string]any
	Actor       Actor
}

// IntegrationUpdateResult reports the order after the edit and the keys that were applied.
type IntegrationUpdateResult struct {
	Order         Order
	UpdatedFields []string
}

// Storefront keys accepted by UpdateOrder.
const (
	IntegrationFieldCustomerEmail  = "customer_email"
	IntegrationFieldCustomerPhone  = "customer_phone"
	IntegrationFieldRecipient      = "recipient_name"
	IntegrationFieldStreet         = "street"
	IntegrationFieldNumber         = "number"
	IntegrationFieldComplement     = "complement"
	IntegrationFieldDistrict       = "district"
	IntegrationFieldCity           = "city"
	IntegrationFieldState          = "state"
	IntegrationFieldPostalCode     = "postal_code"
	IntegrationFieldRecipientPhone = "recipient_phone"
	IntegrationFieldShippingLabel  = "shipping_label"
	IntegrationFieldShippingMethod = "shipping_method"
)

var integrationUpdatableFields = []string{
	IntegrationFieldCustomerEmail,
	IntegrationFieldCustomerPhone,
	IntegrationFieldRecipient,
	IntegrationFieldStreet,
	IntegrationFieldNumber,
	IntegrationFieldComplement,
	IntegrationFieldDistrict,
	IntegrationFieldCity,
	IntegrationFieldState,
	IntegrationFieldPostalCode,
	IntegrationFieldRecipientPhone,
	IntegrationFieldShippingLabel,
	IntegrationFieldShippingMethod,
}

// IntegrationServiceDeps bundles collaborators required to construct the integration facade.
type IntegrationServiceDeps struct {
	Orders   OrderService
	Statuses StatusCatalog
	// CancelStatusID is the status storefront cancellations move orders to.
	CancelStatusID int
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type integrationService struct {
	orders         OrderService
	statuses       StatusCatalog
	cancelStatusID int
	logger         func(context.Context, string, map[string]any)
}

// NewIntegrationService wires the order service into the storefront facade.
func NewIntegrationService(deps IntegrationServiceDeps) (IntegrationService, error) {
	if deps.Orders == nil {
		return nil, errors.New("integration service: order service is required")
	}
	if deps.Statuses == nil {
		return nil, errors.New("integration service: status catalog is required")
	}
	if deps.CancelStatusID <= 0 {
		return nil, errors.New("integration service: cancel status id must be positive")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &integrationService{
		orders:         deps.Orders,
		statuses:       deps.Statuses,
		cancelStatusID: deps.CancelStatusID,
		logger:         logger,
	}, nil
}

func (s *integrationService) CreateOrder(ctx context.Context, cmd IntegrationOrderCommand) (Order, error) {
	if err := validateIntegrationOrder(cmd); err != nil {
		return Order{}, err
	}
	number := cmd.OrderNumber
	metadata := maps.Clone(cmd.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["storefront_actor"] = cmd.Actor.ID

	order, err := s.orders.CreateOrder(ctx, CreateOrderCommand{
		OrderNumber:    &number,
		Title:          integrationTitle(cmd),
		ValueCents:     cmd.ValueCents,
		ShippingCents:  cmd.ShippingCents,
		ShippingMethod: cmd.ShippingMethod,
		ShippingLabel:  cmd.ShippingLabel,
		Customer:       cmd.Customer,
		Shipping:       cmd.Shipping,
		Items:          cmd.Items,
		Source:         domain.OrderSourceIntegration,
		Metadata:       metadata,
		Notes:          cmd.Notes,
		Actor:          cmd.Actor,
	})
	if err != nil {
		return Order{}, err
	}
	s.logger(ctx, "integration.order.received", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
	})
	return order, nil
}

func (s *integrationService) ListOrders(ctx context.Context, page, limit int) (IntegrationOrderPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultIntegrationPageSize
	}
	limit = min(limit, pagination.DefaultMaxPageSize)

	result, err := s.orders.ListOrders(ctx, OrderListFilter{
		Pagination: domain.Pagination{
			PageSize:  limit,
			PageToken: pagination.EncodeToken(pagination.Cursor{Offset: (page - 1) * limit}),
		},
	})
	if err != nil {
		return IntegrationOrderPage{}, err
	}

	names, err := s.statusNames(ctx)
	if err != nil {
		return IntegrationOrderPage{}, err
	}
	out := IntegrationOrderPage{
		Orders:     make([]IntegrationOrderSummary, 0, len(result.Items)),
		Total:      result.Total,
		Page:       page,
		Limit:      limit,
		TotalPages: (result.Total + limit - 1) / limit,
	}
	for _, order := range result.Items {
		out.Orders = append(out.Orders, IntegrationOrderSummary{
			ID:           order.ID,
			OrderNumber:  order.OrderNumber,
			Status:       statusLabel(names, order.StatusID),
			CustomerName: order.Customer.Name,
			ValueCents:   order.ValueCents,
			CreatedAt:    order.CreatedAt,
			UpdatedAt:    order.UpdatedAt,
		})
	}
	return out, nil
}

func (s *integrationService) OrderStatus(ctx context.Context, orderNumber int64) (IntegrationOrderStatus, error) {
	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return IntegrationOrderStatus{}, err
	}
	names, err := s.statusNames(ctx)
	if err != nil {
		return IntegrationOrderStatus{}, err
	}
	return IntegrationOrderStatus{
		OrderNumber: order.OrderNumber,
		StatusID:    order.StatusID,
		Status:      statusLabel(names, order.StatusID),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}, nil
}

// CancelOrder moves the order to the cancel status through the regular
// transition path, so subscribers must confirm the cancellation.
func (s *integrationService) CancelOrder(ctx context.Context, cmd IntegrationCancelCommand) (TransitionResult, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return TransitionResult{}, fmt.Errorf("%w: cancellation reason is required", ErrIntegrationInvalidInput)
	}
	if len(reason) > maxCancelReasonLength {
		return TransitionResult{}, fmt.Errorf("%w: cancellation reason exceeds %d characters", ErrIntegrationInvalidInput, maxCancelReasonLength)
	}
	order, err := s.orders.GetOrderByNumber(ctx, cmd.OrderNumber)
	if err != nil {
		return TransitionResult{}, err
	}
	result, err := s.orders.TransitionStatus(ctx, TransitionCommand{
		OrderID:  order.ID,
		StatusID: s.cancelStatusID,
		Notes:    reason,
		ExtraData: map[string]any{
			"cancellation_reason": reason,
			"source":              domain.OrderSourceIntegration,
		},
		Actor:      cmd.Actor,
		Sequencing: PersistThenNotify,
	})
	if err != nil {
		return TransitionResult{}, err
	}
	s.logger(ctx, "integration.order.cancelled", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"changed":     result.Changed,
	})
	return result, nil
}

func (s *integrationService) UpdateOrder(ctx context.Context, cmd IntegrationUpdateCommand) (IntegrationUpdateResult, error) {
	if len(cmd.Fields) == 0 {
		return IntegrationUpdateResult{}, fmt.Errorf("%w: no data provided", ErrIntegrationInvalidInput)
	}
	values := make(map[string]string, len(integrationUpdatableFields))
	for _, key := range integrationUpdatableFields {
		raw, ok := cmd.Fields[key]
		if !ok || raw == nil {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			return IntegrationUpdateResult{}, fmt.Errorf("%w: %s must be a string", ErrIntegrationInvalidInput, key)
		}
		values[key] = strings.TrimSpace(value)
	}
	if len(values) == 0 {
		return IntegrationUpdateResult{}, fmt.Errorf("%w: no updatable fields provided", ErrIntegrationInvalidInput)
	}
	if email, ok := values[IntegrationFieldCustomerEmail]; ok {
		if _, err := mail.ParseAddress(email); err != nil {
			return IntegrationUpdateResult{}, fmt.Errorf("%w: customer_email is invalid", ErrIntegrationInvalidInput)
		}
	}

	order, err := s.orders.GetOrderByNumber(ctx, cmd.OrderNumber)
	if err != nil {
		return IntegrationUpdateResult{}, err
	}

	customer := order.Customer
	shipping := order.Shipping
	update := UpdateOrderCommand{OrderID: order.ID, Actor: cmd.Actor}
	touchedCustomer, touchedShipping := false, false
	for key, value := range values {
		switch key {
		case IntegrationFieldCustomerEmail:
			customer.Email, touchedCustomer = value, true
		case IntegrationFieldCustomerPhone:
			customer.Phone, touchedCustomer = value, true
		case IntegrationFieldRecipient:
			shipping.Recipient, touchedShipping = value, true
		case IntegrationFieldStreet:
			shipping.Street, touchedShipping = value, true
		case IntegrationFieldNumber:
			shipping.Number, touchedShipping = value, true
		case IntegrationFieldComplement:
			shipping.Complement, touchedShipping = value, true
		case IntegrationFieldDistrict:
			shipping.District, touchedShipping = value, true
		case IntegrationFieldCity:
			shipping.City, touchedShipping = value, true
		case IntegrationFieldState:
			shipping.State, touchedShipping = value, true
		case IntegrationFieldPostalCode:
			shipping.PostalCode, touchedShipping = value, true
		case IntegrationFieldRecipientPhone:
			shipping.Phone, touchedShipping = value, true
		case IntegrationFieldShippingLabel:
			update.ShippingLabel = &value
		case IntegrationFieldShippingMethod:
			update.ShippingMethod = &value
		}
	}
	if touchedCustomer {
		update.Customer = &customer
	}
	if touchedShipping {
		update.Shipping = &shipping
	}

	updated, err := s.orders.UpdateFields(ctx, update)
	if err != nil {
		return IntegrationUpdateResult{}, err
	}
	fields := slices.Sorted(maps.Keys(values))
	s.logger(ctx, "integration.order.updated", map[string]any{
		"orderId":     updated.ID,
		"orderNumber": updated.OrderNumber,
		"fields":      fields,
	})
	return IntegrationUpdateResult{Order: updated, UpdatedFields: fields}, nil
}

func (s *integrationService) statusNames(ctx context.Context) (map[int]string, error) {
	statuses, err := s.statuses.List(ctx, false)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(statuses))
	for _, status := range statuses {
		names[status.ID] = status.Name
	}
	return names, nil
}

func statusLabel(names map[int]string, statusID int) string {
	if name, ok := names[statusID]; ok {
		return name
	}
	return "Unknown"
}

func validateIntegrationOrder(cmd IntegrationOrderCommand) error {
	var missing []string
	if cmd.OrderNumber <= 0 {
		missing = append(missing, "order_number")
	}
	if strings.TrimSpace(cmd.Customer.Name) == "" {
		missing = append(missing, "customer_name")
	}
	if strings.TrimSpace(cmd.Customer.Email) == "" {
		missing = append(missing, "customer_email")
	}
	if len(cmd.Items) == 0 {
		missing = append(missing, "products")
	}
	required := []struct {
		name  string
		value string
	}{
		{"shipping_address.recipient_name", cmd.Shipping.Recipient},
		{"shipping_address.street", cmd.Shipping.Street},
		{"shipping_address.number", cmd.Shipping.Number},
		{"shipping_address.city", cmd.Shipping.City},
		{"shipping_address.state", cmd.Shipping.State},
		{"shipping_address.postal_code", cmd.Shipping.PostalCode},
		{"shipping_address.district", cmd.Shipping.District},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIntegrationInvalidInput, strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(cmd.Customer.Email)); err != nil {
		return fmt.Errorf("%w: customer_email is invalid", ErrIntegrationInvalidInput)
	}
	return nil
}

func integrationTitle(cmd IntegrationOrderCommand) string {
	if len(cmd.Items) > 0 {
		if name := strings.TrimSpace(cmd.Items[0].Name); name != "" {
			return name
		}
	}
	return ""
}
