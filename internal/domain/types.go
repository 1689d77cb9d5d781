package domain

import "time"

// Pagination captures common pagination input.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
	Total         int
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// InitialStatusID is the status every order starts in.
const InitialStatusID = 1

// Status is a catalog entry an order can be in. Rank is only a sort hint.
type Status struct {
	ID          int
	Name        string
	Description string
	Color       string
	Rank        int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultStatuses is the catalog seeded into empty databases.
func DefaultStatuses() []Status {
	return []Status{
		{ID: 1, Name: "Aberto", Description: "Pedido aberto", Color: "blue", Rank: 1, Active: true},
		{ID: 2, Name: "Em andamento", Description: "Pedido em produção", Color: "orange", Rank: 2, Active: true},
		{ID: 3, Name: "Concluído", Description: "Pedido concluído", Color: "green", Rank: 3, Active: true},
		{ID: 4, Name: "Cancelado", Description: "Pedido cancelado", Color: "red", Rank: 4, Active: true},
	}
}

// ActionKind classifies an audit trail entry.
type ActionKind string

const (
	ActionCreation     ActionKind = "creation"
	ActionStatusChange ActionKind = "status_change"
	ActionNote         ActionKind = "note"
	ActionSystem       ActionKind = "system"
)

// Valid reports whether the kind is one of the known action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionCreation, ActionStatusChange, ActionNote, ActionSystem:
		return true
	}
	return false
}

// TransitionRecord is an append-only audit entry for an order.
// PreviousStatusID is nil only for the creation entry; ActorID is nil for system changes.
type TransitionRecord struct {
	ID               string
	OrderID          string
	PreviousStatusID *int
	NewStatusID      int
	Action           ActionKind
	Notes            string
	ExtraData        map[string]any
	ActorID          *string
	CreatedAt        time.Time
}

// Order is a customer's print job.
type Order struct {
	ID             string
	OrderNumber    int64
	Title          string
	Description    string
	ValueCents     int64
	ShippingCents  int64
	ShippingLabel  string
	ShippingMethod string
	Customer       OrderCustomer
	Shipping       ShippingAddress
	Items          []OrderItem
	StatusID       int
	OwnerID        string
	Source         string
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderCustomer holds the buyer contact details.
type OrderCustomer struct {
	Name     string
	Document string
	Email    string
	Phone    string
}

// ShippingAddress is the delivery destination of an order.
type ShippingAddress struct {
	Recipient  string
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// OrderItem is a printed product line.
type OrderItem struct {
	Name       string
	SKU        string
	SKUID      string
	Quantity   int
	PDFURL     string
	DesignURL  string
	MockupURL  string
	UnitCents  int64
	Attributes map[string]string
}

// Order sources.
const (
	OrderSourceBackoffice  = "backoffice"
	OrderSourceIntegration = "integration"
)

// NotificationEndpoint is an external subscriber informed about status changes.
type NotificationEndpoint struct {
	ID            string
	URL           string
	Description   string
	Active        bool
	SigningSecret string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NotificationAttemptResult is the outcome of one delivery attempt. It is never persisted.
type NotificationAttemptResult struct {
	EndpointID string
	URL        string
	Success    bool
	HTTPStatus int
	Error      string
	Duration   time.Duration
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
