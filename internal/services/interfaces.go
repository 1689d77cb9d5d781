package services

import (
	"context"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order                     = domain.Order
	OrderItem                 = domain.OrderItem
	OrderCustomer             = domain.OrderCustomer
	ShippingAddress           = domain.ShippingAddress
	Status                    = domain.Status
	TransitionRecord          = domain.TransitionRecord
	NotificationEndpoint      = domain.NotificationEndpoint
	NotificationAttemptResult = domain.NotificationAttemptResult
	SystemHealthReport        = domain.SystemHealthReport
	OrderListFilter           = repositories.OrderListFilter
)

// StatusCatalog serves the reference list of order statuses.
type StatusCatalog interface {
	Get(ctx context.Context, statusID int) (Status, error)
	List(ctx context.Context, activeOnly bool) ([]Status, error)
	Upsert(ctx context.Context, status Status) (Status, error)
	Seed(ctx context.Context, statuses []Status) error
}

// AuditTrail reads and appends order history. Append and AddNote's record are
// written through the caller's unit of work when ctx carries one.
type AuditTrail interface {
	Append(ctx context.Context, record TransitionRecord) (TransitionRecord, error)
	ListByOrder(ctx context.Context, orderID string) ([]TransitionRecord, error)
}

// NotificationDispatcher delivers a status change to every active endpoint.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notification Notification) (DispatchReport, error)
}

// OrderService owns order creation, edits and status transitions.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOrderByNumber(ctx context.Context, number int64) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateFields(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	TransitionStatus(ctx context.Context, cmd TransitionCommand) (TransitionResult, error)
	AddNote(ctx context.Context, cmd AddNoteCommand) (TransitionRecord, error)
	History(ctx context.Context, orderID string) ([]TransitionRecord, error)
}

// BulkTransitionRunner applies one status change to many orders, isolating failures per order.
type BulkTransitionRunner interface {
	TransitionMany(ctx context.Context, cmd BulkTransitionCommand) (BatchReport, error)
}

// WebhookEndpointService administers notification endpoints.
type WebhookEndpointService interface {
	List(ctx context.Context) ([]NotificationEndpoint, error)
	Get(ctx context.Context, endpointID string) (NotificationEndpoint, error)
	Create(ctx context.Context, cmd CreateEndpointCommand) (NotificationEndpoint, error)
	Update(ctx context.Context, cmd UpdateEndpointCommand) (NotificationEndpoint, error)
	Delete(ctx context.Context, endpointID string) error
}

// IntegrationService is the storefront-facing facade keyed by order number.
type IntegrationService interface {
	CreateOrder(ctx context.Context, cmd IntegrationOrderCommand) (Order, error)
	ListOrders(ctx context.Context, page, limit int) (IntegrationOrderPage, error)
	OrderStatus(ctx context.Context, orderNumber int64) (IntegrationOrderStatus, error)
	CancelOrder(ctx context.Context, cmd IntegrationCancelCommand) (TransitionResult, error)
	UpdateOrder(ctx context.Context, cmd IntegrationUpdateCommand) (IntegrationUpdateResult, error)
}

// IntegrationMetrics keeps a bounded log of integration API calls.
type IntegrationMetrics interface {
	Record(call IntegrationCall)
	Snapshot(now time.Time) IntegrationMetricsSnapshot
	Reset()
}

// SystemService exposes service health and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// ReportArchiver stores finished bulk reports.
type ReportArchiver interface {
	ArchiveBulkReport(ctx context.Context, report BatchReport) (string, error)
}

// DispatchMetrics records webhook delivery attempts.
type DispatchMetrics interface {
	RecordDispatchAttempt(ctx context.Context, success bool, httpStatus int, elapsed time.Duration)
}

// TransitionMetrics records transition attempts and bulk runs.
type TransitionMetrics interface {
	RecordTransition(ctx context.Context, sequencing, outcome string)
	RecordBulkRun(ctx context.Context, successes, failures int)
}

// Actor is the authenticated caller on whose behalf a service acts. Handlers
// resolve it; services only record it.
type Actor struct {
	ID    string
	Roles []string
}

// Sequencing selects how a transition orders webhook dispatch and persistence.
type Sequencing string

const (
	// PersistThenNotify writes inside the unit of work, dispatches, and rolls back on dispatch failure.
	PersistThenNotify Sequencing = "persist_then_notify"
	// NotifyThenPersist dispatches first and opens the unit of work only after every endpoint confirmed.
	NotifyThenPersist Sequencing = "notify_then_persist"
)

// Valid reports whether s is a known sequencing.
func (s Sequencing) Valid() bool {
	return s == PersistThenNotify || s == NotifyThenPersist
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type             string
	OrderID          string
	OrderNumber      int64
	PreviousStatusID *int
	StatusID         int
	ActorID          string
	OccurredAt       time.Time
	Metadata         map[string]any
}

// CreateOrderCommand describes a new order. A nil OrderNumber draws one from the order counter.
type CreateOrderCommand struct {
	OrderNumber    *int64
	Title          string
	Description    string
	ValueCents     int64
	ShippingCents  int64
	ShippingMethod string
	ShippingLabel  string
	Customer       OrderCustomer
	Shipping       ShippingAddress
	Items          []OrderItem
	OwnerID        string
	Source         string
	Metadata       map[string]any
	Notes          string
	Actor          Actor
}

// UpdateOrderCommand carries non-status field edits; nil fields are left untouched.
type UpdateOrderCommand struct {
	OrderID        string
	Title          *string
	Description    *string
	ValueCents     *int64
	ShippingCents  *int64
	ShippingMethod *string
	ShippingLabel  *string
	Customer       *OrderCustomer
	Shipping       *ShippingAddress
	Items          []OrderItem
	Metadata       map[string]any
	Actor          Actor
}

// TransitionCommand requests a status change for one order. A zero Sequencing
// uses the service default.
type TransitionCommand struct {
	OrderID    string
	StatusID   int
	Notes      string
	Action     domain.ActionKind
	ExtraData  map[string]any
	Actor      Actor
	Sequencing Sequencing
}

// TransitionResult is the outcome of a successful transition call. Changed is
// false when the order already had the requested status.
type TransitionResult struct {
	Order    Order
	Record   *TransitionRecord
	Changed  bool
	Dispatch DispatchReport
}

// AddNoteCommand appends a free-text observation to an order's history.
type AddNoteCommand struct {
	OrderID string
	Note    string
	Actor   Actor
}

// BulkTransitionCommand moves a batch of orders to one status.
type BulkTransitionCommand struct {
	OrderIDs []string
	StatusID int
	Notes    string
	Actor    Actor
}

// CreateEndpointCommand registers a webhook endpoint. Active defaults to true.
type CreateEndpointCommand struct {
	URL           string
	Description   string
	Active        *bool
	SigningSecret string
}

// UpdateEndpointCommand edits a webhook endpoint; nil fields are left untouched.
type UpdateEndpointCommand struct {
	EndpointID    string
	URL           *string
	Description   *string
	Active        *bool
	SigningSecret *string
}
