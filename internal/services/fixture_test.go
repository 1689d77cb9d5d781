package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/repositories/memory"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock(start time.Time) func() time.Time {
	var ticks atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%06d", prefix, n.Add(1))
	}
}

type stubDispatcher struct {
	mu         sync.Mutex
	calls      []Notification
	dispatchFn func(ctx context.Context, n Notification) (DispatchReport, error)
}

func (s *stubDispatcher) Dispatch(ctx context.Context, n Notification) (DispatchReport, error) {
	s.mu.Lock()
	s.calls = append(s.calls, n)
	s.mu.Unlock()
	if s.dispatchFn != nil {
		return s.dispatchFn(ctx, n)
	}
	return DispatchReport{Results: []NotificationAttemptResult{{EndpointID: "whk_1", URL: "https://hooks.example.com", Success: true, HTTPStatus: 200}}}, nil
}

func (s *stubDispatcher) Calls() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.calls...)
}

func failedReport(url string, status int) DispatchReport {
	return DispatchReport{Results: []NotificationAttemptResult{
		{EndpointID: "whk_ok", URL: "https://ok.example.com", Success: true, HTTPStatus: 200},
		{EndpointID: "whk_bad", URL: url, HTTPStatus: status, Error: fmt.Sprintf("unexpected status %d", status)},
	}}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderEvent(nil), p.events...)
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	bulk        [][2]int
}

func (m *recordingMetrics) RecordTransition(_ context.Context, sequencing, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, sequencing+":"+outcome)
}

func (m *recordingMetrics) RecordBulkRun(_ context.Context, successes, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulk = append(m.bulk, [2]int{successes, failures})
}

type workflowFixture struct {
	registry   *memory.Registry
	catalog    StatusCatalog
	audit      AuditTrail
	dispatcher *stubDispatcher
	events     *recordingPublisher
	metrics    *recordingMetrics
	orders     OrderService
	clock      func() time.Time
}

func newWorkflowFixture(t *testing.T, opts ...func(*OrderServiceDeps)) *workflowFixture {
	t.Helper()
	return newWorkflowFixtureWithStore(t, memory.NewRegistry(), opts...)
}

func newWorkflowFixtureWithStore(t *testing.T, registry *memory.Registry, opts ...func(*OrderServiceDeps)) *workflowFixture {
	t.Helper()
	clock := tickingClock(time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC))

	catalog, err := NewStatusCatalog(StatusCatalogDeps{
		Statuses:   registry.Statuses(),
		UnitOfWork: registry,
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("NewStatusCatalog: %v", err)
	}
	if err := catalog.Seed(context.Background(), domain.DefaultStatuses()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	audit, err := NewAuditTrail(AuditTrailDeps{
		Transitions: registry.Transitions(),
		Clock:       clock,
		IDGenerator: sequentialIDs(""),
	})
	if err != nil {
		t.Fatalf("NewAuditTrail: %v", err)
	}

	fx := &workflowFixture{
		registry:   registry,
		catalog:    catalog,
		audit:      audit,
		dispatcher: &stubDispatcher{},
		events:     &recordingPublisher{},
		metrics:    &recordingMetrics{},
		clock:      clock,
	}
	deps := OrderServiceDeps{
		Orders:      registry.Orders(),
		Counters:    registry.Counters(),
		Statuses:    catalog,
		Audit:       audit,
		Dispatcher:  fx.dispatcher,
		UnitOfWork:  registry,
		Clock:       clock,
		IDGenerator: sequentialIDs(""),
		Events:      fx.events,
		Metrics:     fx.metrics,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	orders, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	fx.orders = orders
	return fx
}

func (fx *workflowFixture) createOrder(t *testing.T, customer string) Order {
	t.Helper()
	order, err := fx.orders.CreateOrder(context.Background(), CreateOrderCommand{
		Title:      "Caderno personalizado",
		ValueCents: 12990,
		Customer:   OrderCustomer{Name: customer, Email: "cliente@example.com"},
		Items:      []OrderItem{{Name: "Caderno A5", SKU: "CAD-A5", Quantity: 1, UnitCents: 12990}},
		Actor:      Actor{ID: "staff-1"},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func (fx *workflowFixture) committedOrder(t *testing.T, orderID string) Order {
	t.Helper()
	order, err := fx.registry.Orders().FindByID(context.Background(), orderID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return order
}

func (fx *workflowFixture) history(t *testing.T, orderID string) []TransitionRecord {
	t.Helper()
	records, err := fx.registry.Transitions().ListByOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	return records
}
