package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/services"
)

type stubOrderService struct {
	createFn      func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn         func(context.Context, string) (services.Order, error)
	getByNumberFn func(context.Context, int64) (services.Order, error)
	listFn        func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateFn      func(context.Context, services.UpdateOrderCommand) (services.Order, error)
	deleteFn      func(context.Context, string) error
	transitionFn  func(context.Context, services.TransitionCommand) (services.TransitionResult, error)
	addNoteFn     func(context.Context, services.AddNoteCommand) (services.TransitionRecord, error)
	historyFn     func(context.Context, string) ([]services.TransitionRecord, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrderByNumber(ctx context.Context, number int64) (services.Order, error) {
	if s.getByNumberFn != nil {
		return s.getByNumberFn(ctx, number)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) UpdateFields(ctx context.Context, cmd services.UpdateOrderCommand) (services.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return errors.New("not implemented")
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.TransitionCommand) (services.TransitionResult, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.TransitionResult{}, errors.New("not implemented")
}

func (s *stubOrderService) AddNote(ctx context.Context, cmd services.AddNoteCommand) (services.TransitionRecord, error) {
	if s.addNoteFn != nil {
		return s.addNoteFn(ctx, cmd)
	}
	return services.TransitionRecord{}, errors.New("not implemented")
}

func (s *stubOrderService) History(ctx context.Context, orderID string) ([]services.TransitionRecord, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, orderID)
	}
	return nil, nil
}

type stubBulkRunner struct {
	fn func(context.Context, services.BulkTransitionCommand) (services.BatchReport, error)
}

func (s *stubBulkRunner) TransitionMany(ctx context.Context, cmd services.BulkTransitionCommand) (services.BatchReport, error) {
	if s.fn != nil {
		return s.fn(ctx, cmd)
	}
	return services.BatchReport{}, errors.New("not implemented")
}

type stubStatusCatalog struct {
	getFn  func(context.Context, int) (services.Status, error)
	listFn func(context.Context, bool) ([]services.Status, error)
}

func (s *stubStatusCatalog) Get(ctx context.Context, statusID int) (services.Status, error) {
	if s.getFn != nil {
		return s.getFn(ctx, statusID)
	}
	return services.Status{}, services.ErrStatusNotFound
}

func (s *stubStatusCatalog) List(ctx context.Context, activeOnly bool) ([]services.Status, error) {
	if s.listFn != nil {
		return s.listFn(ctx, activeOnly)
	}
	return nil, nil
}

func (s *stubStatusCatalog) Upsert(context.Context, services.Status) (services.Status, error) {
	return services.Status{}, errors.New("not implemented")
}

func (s *stubStatusCatalog) Seed(context.Context, []services.Status) error {
	return errors.New("not implemented")
}

type stubEndpointService struct {
	listFn   func(context.Context) ([]services.NotificationEndpoint, error)
	getFn    func(context.Context, string) (services.NotificationEndpoint, error)
	createFn func(context.Context, services.CreateEndpointCommand) (services.NotificationEndpoint, error)
	updateFn func(context.Context, services.UpdateEndpointCommand) (services.NotificationEndpoint, error)
	deleteFn func(context.Context, string) error
}

func (s *stubEndpointService) List(ctx context.Context) ([]services.NotificationEndpoint, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubEndpointService) Get(ctx context.Context, endpointID string) (services.NotificationEndpoint, error) {
	if s.getFn != nil {
		return s.getFn(ctx, endpointID)
	}
	return services.NotificationEndpoint{}, services.ErrEndpointNotFound
}

func (s *stubEndpointService) Create(ctx context.Context, cmd services.CreateEndpointCommand) (services.NotificationEndpoint, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.NotificationEndpoint{}, errors.New("not implemented")
}

func (s *stubEndpointService) Update(ctx context.Context, cmd services.UpdateEndpointCommand) (services.NotificationEndpoint, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.NotificationEndpoint{}, errors.New("not implemented")
}

func (s *stubEndpointService) Delete(ctx context.Context, endpointID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, endpointID)
	}
	return errors.New("not implemented")
}

type stubIntegrationService struct {
	createFn func(context.Context, services.IntegrationOrderCommand) (services.Order, error)
	listFn   func(context.Context, int, int) (services.IntegrationOrderPage, error)
	statusFn func(context.Context, int64) (services.IntegrationOrderStatus, error)
	cancelFn func(context.Context, services.IntegrationCancelCommand) (services.TransitionResult, error)
	updateFn func(context.Context, services.IntegrationUpdateCommand) (services.IntegrationUpdateResult, error)
}

func (s *stubIntegrationService) CreateOrder(ctx context.Context, cmd services.IntegrationOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubIntegrationService) ListOrders(ctx context.Context, page, limit int) (services.IntegrationOrderPage, error) {
	if s.listFn != nil {
		return s.listFn(ctx, page, limit)
	}
	return services.IntegrationOrderPage{}, nil
}

func (s *stubIntegrationService) OrderStatus(ctx context.Context, number int64) (services.IntegrationOrderStatus, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, number)
	}
	return services.IntegrationOrderStatus{}, services.ErrOrderNotFound
}

func (s *stubIntegrationService) CancelOrder(ctx context.Context, cmd services.IntegrationCancelCommand) (services.TransitionResult, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.TransitionResult{}, errors.New("not implemented")
}

func (s *stubIntegrationService) UpdateOrder(ctx context.Context, cmd services.IntegrationUpdateCommand) (services.IntegrationUpdateResult, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.IntegrationUpdateResult{}, errors.New("not implemented")
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var (
	_ services.OrderService           = (*stubOrderService)(nil)
	_ services.BulkTransitionRunner   = (*stubBulkRunner)(nil)
	_ services.StatusCatalog          = (*stubStatusCatalog)(nil)
	_ services.WebhookEndpointService = (*stubEndpointService)(nil)
	_ services.IntegrationService     = (*stubIntegrationService)(nil)
	_ services.SystemService          = (*stubSystemService)(nil)
)

// asIdentity injects an authenticated identity the way the staff middleware would.
func asIdentity(uid string, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Roles: roles})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(identity func(http.Handler) http.Handler, routes RouteRegistrar) chi.Router {
	r := chi.NewRouter()
	if identity != nil {
		r.Use(identity)
	}
	routes(r)
	return r
}

func decodeBodyMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	body := decodeBodyMap(t, rr)
	if body["error"] != code {
		t.Fatalf("expected error %q, got %v", code, body["error"])
	}
}

func sampleOrder(id, owner string) services.Order {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return services.Order{
		ID:          id,
		OrderNumber: 1001,
		Title:       "Business cards",
		ValueCents:  12000,
		Customer:    services.OrderCustomer{Name: "Ana Souza", Email: "ana@example.com"},
		Items:       []services.OrderItem{{Name: "Cards", SKU: "BC-100", Quantity: 500}},
		StatusID:    1,
		OwnerID:     owner,
		Source:      domain.OrderSourceBackoffice,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}
