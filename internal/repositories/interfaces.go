package repositories

import (
	"context"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Statuses() StatusRepository
	Transitions() TransitionRepository
	Endpoints() EndpointRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in an atomic boundary. Writes made through
// the context handed to fn become visible only if fn returns nil; any error rolls
// every write back.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, number int64) (domain.Order, error)
	// FindForUpdate reads the order and, inside a unit of work, holds a write lock on
	// it until the unit of work ends.
	FindForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// StatusRepository stores the status catalog.
type StatusRepository interface {
	Get(ctx context.Context, statusID int) (domain.Status, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Status, error)
	Upsert(ctx context.Context, status domain.Status) error
}

// TransitionRepository is the append-only audit trail. There is deliberately no
// update or delete.
type TransitionRepository interface {
	Append(ctx context.Context, record domain.TransitionRecord) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.TransitionRecord, error)
}

// EndpointRepository stores webhook subscriber endpoints.
type EndpointRepository interface {
	List(ctx context.Context, activeOnly bool) ([]domain.NotificationEndpoint, error)
	FindByID(ctx context.Context, endpointID string) (domain.NotificationEndpoint, error)
	Insert(ctx context.Context, endpoint domain.NotificationEndpoint) error
	Update(ctx context.Context, endpoint domain.NotificationEndpoint) error
	Delete(ctx context.Context, endpointID string) error
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order listings. Results are ordered by creation time, newest first.
type OrderListFilter struct {
	StatusIDs    []int
	SKU          string
	OrderNumber  *int64
	CustomerName string
	OwnerID      string
	IssuedOn     domain.RangeQuery[time.Time]
	Pagination   domain.Pagination
}
