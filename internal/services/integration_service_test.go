package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	domain "github.com/printhouse/orders-api/internal/domain"
)

func newIntegrationFixture(t *testing.T) (*workflowFixture, IntegrationService) {
	t.Helper()
	fx := newWorkflowFixture(t)
	svc, err := NewIntegrationService(IntegrationServiceDeps{
		Orders:         fx.orders,
		Statuses:       fx.catalog,
		CancelStatusID: 4,
	})
	if err != nil {
		t.Fatalf("NewIntegrationService: %v", err)
	}
	return fx, svc
}

func storefrontOrder(number int64) IntegrationOrderCommand {
	return IntegrationOrderCommand{
		OrderNumber:    number,
		ValueCents:     4590,
		ShippingCents:  1200,
		ShippingMethod: "PAC",
		Customer:       OrderCustomer{Name: "Joana Lima", Email: "joana@example.com"},
		Shipping: ShippingAddress{
			Recipient:  "Joana Lima",
			Street:     "Rua das Flores",
			Number:     "100",
			District:   "Centro",
			City:       "Curitiba",
			State:      "PR",
			PostalCode: "80000-000",
		},
		Items: []OrderItem{{Name: "Convite de casamento", SKU: "CNV-01", Quantity: 50, UnitCents: 90}},
		Actor: Actor{ID: "storefront"},
	}
}

func TestIntegrationServiceCreateOrder(t *testing.T) {
	fx, svc := newIntegrationFixture(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, storefrontOrder(7001))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderNumber != 7001 || order.Source != domain.OrderSourceIntegration || order.Title != "Convite de casamento" {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.StatusID != domain.InitialStatusID {
		t.Fatalf("expected initial status, got %d", order.StatusID)
	}
	if len(fx.history(t, order.ID)) != 1 {
		t.Fatalf("expected creation record")
	}

	if _, err := svc.CreateOrder(ctx, storefrontOrder(7001)); !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected duplicate number conflict, got %v", err)
	}
}

func TestIntegrationServiceCreateOrderValidation(t *testing.T) {
	_, svc := newIntegrationFixture(t)
	ctx := context.Background()

	missing := storefrontOrder(7002)
	missing.Shipping.City = ""
	missing.Items = nil
	if _, err := svc.CreateOrder(ctx, missing); !errors.Is(err, ErrIntegrationInvalidInput) {
		t.Fatalf("expected missing fields, got %v", err)
	}

	badEmail := storefrontOrder(7003)
	badEmail.Customer.Email = "joana-at-example"
	if _, err := svc.CreateOrder(ctx, badEmail); !errors.Is(err, ErrIntegrationInvalidInput) {
		t.Fatalf("expected invalid email, got %v", err)
	}
}

func TestIntegrationServiceListAndStatus(t *testing.T) {
	_, svc := newIntegrationFixture(t)
	ctx := context.Background()
	for n := int64(1); n <= 5; n++ {
		if _, err := svc.CreateOrder(ctx, storefrontOrder(8000+n)); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
	}

	page, err := svc.ListOrders(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 || page.Page != 2 || page.Limit != 2 || len(page.Orders) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	// Newest first: page two holds the third and second orders.
	if page.Orders[0].OrderNumber != 8003 || page.Orders[1].OrderNumber != 8002 {
		t.Fatalf("unexpected page contents %+v", page.Orders)
	}
	if page.Orders[0].Status != "Aberto" {
		t.Fatalf("unexpected status label %q", page.Orders[0].Status)
	}

	status, err := svc.OrderStatus(ctx, 8004)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if status.StatusID != 1 || status.Status != "Aberto" {
		t.Fatalf("unexpected status %+v", status)
	}
	if _, err := svc.OrderStatus(ctx, 9999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIntegrationServiceCancelOrder(t *testing.T) {
	fx, svc := newIntegrationFixture(t)
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, storefrontOrder(7100))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := svc.CancelOrder(ctx, IntegrationCancelCommand{OrderNumber: 7100}); !errors.Is(err, ErrIntegrationInvalidInput) {
		t.Fatalf("expected missing reason, got %v", err)
	}

	result, err := svc.CancelOrder(ctx, IntegrationCancelCommand{OrderNumber: 7100, Reason: "Cliente desistiu", Actor: Actor{ID: "storefront"}})
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if !result.Changed || result.Order.StatusID != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	latest := fx.history(t, order.ID)[0]
	if latest.ExtraData["cancellation_reason"] != "Cliente desistiu" || latest.Notes != "Cliente desistiu" {
		t.Fatalf("unexpected cancellation record %+v", latest)
	}
	calls := fx.dispatcher.Calls()
	if len(calls) != 1 || calls[0].StatusID != 4 || calls[0].StatusName != "Cancelado" {
		t.Fatalf("expected subscribers to be told about the cancellation, got %+v", calls)
	}
}

func TestIntegrationServiceCancelRejectedBySubscriber(t *testing.T) {
	fx, svc := newIntegrationFixture(t)
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, storefrontOrder(7200))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	fx.dispatcher.dispatchFn = func(context.Context, Notification) (DispatchReport, error) {
		return failedReport("https://erp.example.com", 503), nil
	}

	if _, err := svc.CancelOrder(ctx, IntegrationCancelCommand{OrderNumber: 7200, Reason: "duplicado"}); !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected notification failure, got %v", err)
	}
	if got := fx.committedOrder(t, order.ID).StatusID; got != domain.InitialStatusID {
		t.Fatalf("rejected cancellation must not persist, got %d", got)
	}
}

func TestIntegrationServiceUpdateOrder(t *testing.T) {
	fx, svc := newIntegrationFixture(t)
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, storefrontOrder(7300))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	result, err := svc.UpdateOrder(ctx, IntegrationUpdateCommand{
		OrderNumber: 7300,
		Fields: map[string]any{
			"city":            "Londrina",
			"shipping_method": "SEDEX",
			"customer_phone":  "+55 41 99999-0000",
			"order_number":    123,
		},
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	want := []string{"city", "customer_phone", "shipping_method"}
	if !slices.Equal(result.UpdatedFields, want) {
		t.Fatalf("unexpected updated fields %v", result.UpdatedFields)
	}
	stored := fx.committedOrder(t, order.ID)
	if stored.Shipping.City != "Londrina" || stored.Shipping.Street != "Rua das Flores" {
		t.Fatalf("unexpected shipping %+v", stored.Shipping)
	}
	if stored.ShippingMethod != "SEDEX" || stored.Customer.Phone != "+55 41 99999-0000" || stored.Customer.Name != "Joana Lima" {
		t.Fatalf("unexpected order %+v", stored)
	}
	if stored.OrderNumber != 7300 {
		t.Fatalf("order number must not be editable")
	}

	cases := map[string]map[string]any{
		"empty":        {},
		"unknown only": {"status_id": 3},
		"not a string": {"city": 42},
		"bad email":    {"customer_email": "nope"},
	}
	for name, fields := range cases {
		if _, err := svc.UpdateOrder(ctx, IntegrationUpdateCommand{OrderNumber: 7300, Fields: fields}); !errors.Is(err, ErrIntegrationInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
	if _, err := svc.UpdateOrder(ctx, IntegrationUpdateCommand{OrderNumber: 1, Fields: map[string]any{"city": "X"}}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
