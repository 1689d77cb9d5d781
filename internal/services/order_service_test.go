package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/repositories/memory"
)

func TestNewOrderServiceRequiresCollaborators(t *testing.T) {
	registry := memory.NewRegistry()
	if _, err := NewOrderService(OrderServiceDeps{}); err == nil {
		t.Fatalf("expected error without repositories")
	}
	_, err := NewOrderService(OrderServiceDeps{
		Orders:     registry.Orders(),
		Counters:   registry.Counters(),
		Statuses:   &stubStatusCatalog{},
		Audit:      &stubAuditTrail{},
		Dispatcher: &stubDispatcher{},
		Sequencing: Sequencing("eventually"),
	})
	if err == nil {
		t.Fatalf("expected error for unknown sequencing")
	}
}

func TestOrderServiceCreateOrderWritesCreationRecord(t *testing.T) {
	fx := newWorkflowFixture(t)

	first := fx.createOrder(t, "Maria Souza")
	second := fx.createOrder(t, "João Lima")

	if first.OrderNumber != 1 || second.OrderNumber != 2 {
		t.Fatalf("expected counter numbers 1 and 2, got %d and %d", first.OrderNumber, second.OrderNumber)
	}
	if first.StatusID != domain.InitialStatusID {
		t.Fatalf("expected initial status, got %d", first.StatusID)
	}
	if !strings.HasPrefix(first.ID, orderIDPrefix) {
		t.Fatalf("expected order id prefix, got %s", first.ID)
	}
	if first.Source != domain.OrderSourceBackoffice {
		t.Fatalf("expected backoffice source, got %s", first.Source)
	}

	records := fx.history(t, first.ID)
	if len(records) != 1 {
		t.Fatalf("expected one creation record, got %d", len(records))
	}
	record := records[0]
	if record.Action != domain.ActionCreation || record.PreviousStatusID != nil || record.NewStatusID != domain.InitialStatusID {
		t.Fatalf("unexpected creation record %+v", record)
	}
	if record.ActorID == nil || *record.ActorID != "staff-1" {
		t.Fatalf("expected actor staff-1, got %v", record.ActorID)
	}
	if len(fx.dispatcher.Calls()) != 0 {
		t.Fatalf("expected no dispatch on creation")
	}
	events := fx.events.Events()
	if len(events) != 2 || events[0].Type != orderEventCreated {
		t.Fatalf("expected two created events, got %+v", events)
	}
}

func TestOrderServiceCreateOrderRejectsDuplicateNumber(t *testing.T) {
	fx := newWorkflowFixture(t)
	number := int64(1001)
	cmd := CreateOrderCommand{
		OrderNumber: &number,
		Customer:    OrderCustomer{Name: "Loja Azul"},
	}
	order, err := fx.orders.CreateOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Title != "Pedido #1001" {
		t.Fatalf("expected default title, got %q", order.Title)
	}

	_, err = fx.orders.CreateOrder(context.Background(), cmd)
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	page, err := fx.orders.ListOrders(context.Background(), OrderListFilter{})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected the duplicate to roll back, got %d orders", page.Total)
	}
}

func TestOrderServiceCreateOrderValidation(t *testing.T) {
	fx := newWorkflowFixture(t)
	negative := int64(-5)
	cases := map[string]CreateOrderCommand{
		"no customer":     {Title: "x"},
		"negative value":  {Customer: OrderCustomer{Name: "A"}, ValueCents: -1},
		"negative number": {Customer: OrderCustomer{Name: "A"}, OrderNumber: &negative},
		"bad quantity":    {Customer: OrderCustomer{Name: "A"}, Items: []OrderItem{{Name: "Caderno", Quantity: 0}}},
		"unnamed item":    {Customer: OrderCustomer{Name: "A"}, Items: []OrderItem{{Quantity: 1}}},
	}
	for name, cmd := range cases {
		if _, err := fx.orders.CreateOrder(context.Background(), cmd); !errors.Is(err, ErrOrderInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}

func TestOrderServicePersistThenNotifyCommitsAfterConfirmation(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	fx.dispatcher.dispatchFn = func(ctx context.Context, n Notification) (DispatchReport, error) {
		inTx, err := fx.registry.Orders().FindByID(ctx, n.OrderID)
		if err != nil {
			t.Fatalf("FindByID in tx: %v", err)
		}
		if inTx.StatusID != 2 {
			t.Fatalf("expected the unit of work to see status 2 during dispatch, got %d", inTx.StatusID)
		}
		if committed := fx.committedOrder(t, n.OrderID); committed.StatusID != domain.InitialStatusID {
			t.Fatalf("expected nothing committed before confirmation, got %d", committed.StatusID)
		}
		return DispatchReport{Results: []NotificationAttemptResult{{URL: "https://a.example.com", Success: true, HTTPStatus: 200}}}, nil
	}

	result, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{
		OrderID:    order.ID,
		StatusID:   2,
		Notes:      "<b>Produção</b> iniciada",
		Actor:      Actor{ID: "staff-9"},
		Sequencing: PersistThenNotify,
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if !result.Changed || result.Order.StatusID != 2 || result.Record == nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Record.Notes != "Produção iniciada" {
		t.Fatalf("expected sanitised notes, got %q", result.Record.Notes)
	}
	if got := fx.committedOrder(t, order.ID).StatusID; got != 2 {
		t.Fatalf("expected committed status 2, got %d", got)
	}

	calls := fx.dispatcher.Calls()
	if len(calls) != 1 || calls[0].StatusName != "Em andamento" || calls[0].StatusID != 2 {
		t.Fatalf("unexpected dispatch calls %+v", calls)
	}

	records := fx.history(t, order.ID)
	if len(records) != 2 {
		t.Fatalf("expected creation and transition records, got %d", len(records))
	}
	latest := records[0]
	if latest.Action != domain.ActionStatusChange || latest.PreviousStatusID == nil || *latest.PreviousStatusID != 1 || latest.NewStatusID != 2 {
		t.Fatalf("unexpected transition record %+v", latest)
	}

	events := fx.events.Events()
	last := events[len(events)-1]
	if last.Type != orderEventStatusChanged || last.PreviousStatusID == nil || *last.PreviousStatusID != 1 || last.StatusID != 2 {
		t.Fatalf("unexpected status event %+v", last)
	}
	if fx.metrics.transitions[len(fx.metrics.transitions)-1] != "persist_then_notify:changed" {
		t.Fatalf("unexpected metrics %v", fx.metrics.transitions)
	}
}

func TestOrderServicePersistThenNotifyRollsBackOnRejectedWebhook(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")
	fx.dispatcher.dispatchFn = func(context.Context, Notification) (DispatchReport, error) {
		return failedReport("https://down.example.com/hook", 503), nil
	}

	_, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{
		OrderID:    order.ID,
		StatusID:   3,
		Sequencing: PersistThenNotify,
	})
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected notification failure, got %v", err)
	}
	var notifyErr *NotificationError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("expected NotificationError, got %T", err)
	}
	if len(notifyErr.Report.Results) != 2 || len(notifyErr.Report.Failures()) != 1 {
		t.Fatalf("expected the dispatch report to travel with the error, got %+v", notifyErr.Report)
	}
	if !strings.Contains(err.Error(), "failed to notify 1 of 2 endpoints: URL: https://down.example.com/hook, Error: unexpected status 503, Status: 503") {
		t.Fatalf("unexpected error text %q", err.Error())
	}

	if got := fx.committedOrder(t, order.ID).StatusID; got != domain.InitialStatusID {
		t.Fatalf("expected status to stay 1, got %d", got)
	}
	if records := fx.history(t, order.ID); len(records) != 1 {
		t.Fatalf("expected only the creation record, got %d", len(records))
	}
	for _, event := range fx.events.Events() {
		if event.Type == orderEventStatusChanged {
			t.Fatalf("expected no status event after rollback")
		}
	}
}

func TestOrderServiceDispatcherErrorIsNotificationFailure(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")
	fx.dispatcher.dispatchFn = func(context.Context, Notification) (DispatchReport, error) {
		return DispatchReport{}, errors.New("endpoint store offline")
	}

	for _, sequencing := range []Sequencing{PersistThenNotify, NotifyThenPersist} {
		_, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: order.ID, StatusID: 2, Sequencing: sequencing})
		if !errors.Is(err, ErrNotificationFailed) {
			t.Fatalf("%s: expected notification failure, got %v", sequencing, err)
		}
	}
	if got := fx.committedOrder(t, order.ID).StatusID; got != domain.InitialStatusID {
		t.Fatalf("expected status unchanged, got %d", got)
	}
}

func TestOrderServiceNotifyThenPersistDispatchesBeforeWriting(t *testing.T) {
	var writes atomic.Int64
	registry := memory.NewRegistry(memory.WithFaults(func(op string) error {
		if op == "orders.update" || op == "transitions.append" {
			writes.Add(1)
		}
		return nil
	}))
	fx := newWorkflowFixtureWithStore(t, registry)
	order := fx.createOrder(t, "Maria Souza")
	writes.Store(0)

	fx.dispatcher.dispatchFn = func(ctx context.Context, n Notification) (DispatchReport, error) {
		if writes.Load() != 0 {
			t.Fatalf("expected dispatch before any write, saw %d writes", writes.Load())
		}
		return DispatchReport{}, nil
	}

	result, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{
		OrderID:    order.ID,
		StatusID:   4,
		Sequencing: NotifyThenPersist,
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if !result.Changed || result.Record == nil || result.Order.StatusID != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
	if writes.Load() != 2 {
		t.Fatalf("expected order update and record append, saw %d writes", writes.Load())
	}
}

func TestOrderServiceNotifyThenPersistSkipsUnitOfWorkOnFailure(t *testing.T) {
	var writes atomic.Int64
	registry := memory.NewRegistry(memory.WithFaults(func(op string) error {
		if op == "orders.update" || op == "transitions.append" {
			writes.Add(1)
		}
		return nil
	}))
	fx := newWorkflowFixtureWithStore(t, registry)
	order := fx.createOrder(t, "Maria Souza")
	writes.Store(0)
	fx.dispatcher.dispatchFn = func(context.Context, Notification) (DispatchReport, error) {
		return failedReport("https://down.example.com", 500), nil
	}

	_, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{
		OrderID:    order.ID,
		StatusID:   2,
		Sequencing: NotifyThenPersist,
	})
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected notification failure, got %v", err)
	}
	if writes.Load() != 0 {
		t.Fatalf("expected no writes, saw %d", writes.Load())
	}
	if got := fx.metrics.transitions[len(fx.metrics.transitions)-1]; got != "notify_then_persist:notification_failed" {
		t.Fatalf("unexpected metric %s", got)
	}
}

func TestOrderServicePersistenceFailureRollsBack(t *testing.T) {
	var failAppend atomic.Bool
	registry := memory.NewRegistry(memory.WithFaults(func(op string) error {
		if op == "transitions.append" && failAppend.Load() {
			return errors.New("disk full")
		}
		return nil
	}))
	fx := newWorkflowFixtureWithStore(t, registry)
	order := fx.createOrder(t, "Maria Souza")
	failAppend.Store(true)

	for _, sequencing := range []Sequencing{PersistThenNotify, NotifyThenPersist} {
		_, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: order.ID, StatusID: 2, Sequencing: sequencing})
		if !errors.Is(err, ErrPersistenceFailed) {
			t.Fatalf("%s: expected persistence failure, got %v", sequencing, err)
		}
		if got := fx.committedOrder(t, order.ID).StatusID; got != domain.InitialStatusID {
			t.Fatalf("%s: expected status to roll back, got %d", sequencing, got)
		}
	}
	// Only the notify-first path reaches the dispatcher.
	if calls := fx.dispatcher.Calls(); len(calls) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(calls))
	}
}

func TestOrderServiceSameStatusIsNoop(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	for _, sequencing := range []Sequencing{PersistThenNotify, NotifyThenPersist} {
		result, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{
			OrderID:    order.ID,
			StatusID:   domain.InitialStatusID,
			Sequencing: sequencing,
		})
		if err != nil {
			t.Fatalf("%s: TransitionStatus: %v", sequencing, err)
		}
		if result.Changed || result.Record != nil {
			t.Fatalf("%s: expected no-op, got %+v", sequencing, result)
		}
	}
	if len(fx.dispatcher.Calls()) != 0 {
		t.Fatalf("expected no dispatch for a no-op")
	}
	if records := fx.history(t, order.ID); len(records) != 1 {
		t.Fatalf("expected no new records, got %d", len(records))
	}
}

func TestOrderServiceRejectsUnknownStatusBeforeDispatch(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	_, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: order.ID, StatusID: 99})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := fx.catalog.Upsert(context.Background(), Status{ID: 7, Name: "Arquivado", Active: false}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	_, err = fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: order.ID, StatusID: 7})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected inactive status to be invalid, got %v", err)
	}
	if len(fx.dispatcher.Calls()) != 0 {
		t.Fatalf("expected no dispatch")
	}
}

func TestOrderServiceUnknownOrder(t *testing.T) {
	fx := newWorkflowFixture(t)
	for _, sequencing := range []Sequencing{PersistThenNotify, NotifyThenPersist} {
		_, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: "ord_missing", StatusID: 2, Sequencing: sequencing})
		if !errors.Is(err, ErrOrderNotFound) {
			t.Fatalf("%s: expected not found, got %v", sequencing, err)
		}
	}
	if len(fx.dispatcher.Calls()) != 0 {
		t.Fatalf("expected no dispatch")
	}
}

func TestOrderServiceAdjacencyPolicy(t *testing.T) {
	fx := newWorkflowFixture(t, func(deps *OrderServiceDeps) {
		deps.Policy = NewAdjacencyPolicy(map[int][]int{1: {2, 4}, 2: {3, 4}})
	})
	order := fx.createOrder(t, "Maria Souza")

	_, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: order.ID, StatusID: 3})
	if !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("expected transition not allowed, got %v", err)
	}
	if len(fx.dispatcher.Calls()) != 0 {
		t.Fatalf("expected no dispatch for a rejected move")
	}
	if _, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: order.ID, StatusID: 2}); err != nil {
		t.Fatalf("expected 1 -> 2 to be allowed: %v", err)
	}
}

func TestOrderServiceSerialisesTransitionsPerOrder(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	var inflight, peak atomic.Int64
	fx.dispatcher.dispatchFn = func(context.Context, Notification) (DispatchReport, error) {
		current := inflight.Add(1)
		for {
			seen := peak.Load()
			if current <= seen || peak.CompareAndSwap(seen, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return DispatchReport{}, nil
	}

	var wg sync.WaitGroup
	for _, statusID := range []int{2, 3, 4, 2, 3, 4} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fx.orders.TransitionStatus(context.Background(), TransitionCommand{
				OrderID:    order.ID,
				StatusID:   statusID,
				Sequencing: NotifyThenPersist,
			})
		}()
	}
	wg.Wait()

	if peak.Load() != 1 {
		t.Fatalf("expected transitions of one order to run one at a time, peak %d", peak.Load())
	}
	final := fx.committedOrder(t, order.ID)
	records := fx.history(t, order.ID)
	if records[0].NewStatusID != final.StatusID {
		t.Fatalf("expected latest record to match status %d, got %d", final.StatusID, records[0].NewStatusID)
	}
	for i := 0; i < len(records)-1; i++ {
		if records[i].PreviousStatusID == nil || *records[i].PreviousStatusID != records[i+1].NewStatusID {
			t.Fatalf("expected an unbroken status chain, got %+v then %+v", records[i], records[i+1])
		}
	}
}

func TestOrderServiceAddNote(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	record, err := fx.orders.AddNote(context.Background(), AddNoteCommand{
		OrderID: order.ID,
		Note:    "  Cliente pediu <script>alert(1)</script>capa fosca ",
		Actor:   Actor{ID: "staff-2"},
	})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if record.Action != domain.ActionNote || record.NewStatusID != 1 || record.PreviousStatusID == nil || *record.PreviousStatusID != 1 {
		t.Fatalf("unexpected note record %+v", record)
	}
	if strings.Contains(record.Notes, "script") {
		t.Fatalf("expected markup stripped, got %q", record.Notes)
	}
	if len(fx.dispatcher.Calls()) != 0 {
		t.Fatalf("notes must not dispatch")
	}
	if _, err := fx.orders.AddNote(context.Background(), AddNoteCommand{OrderID: order.ID, Note: "<p></p>"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected empty note rejection, got %v", err)
	}
	if _, err := fx.orders.AddNote(context.Background(), AddNoteCommand{OrderID: "ord_missing", Note: "oi"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderServiceUpdateFieldsLeavesStatusAlone(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	title := "Agenda 2026"
	updated, err := fx.orders.UpdateFields(context.Background(), UpdateOrderCommand{
		OrderID:  order.ID,
		Title:    &title,
		Shipping: &ShippingAddress{Recipient: "Maria", City: "Curitiba", State: "PR"},
	})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if updated.Title != title || updated.Shipping.City != "Curitiba" || updated.StatusID != order.StatusID {
		t.Fatalf("unexpected update %+v", updated)
	}
	if !updated.UpdatedAt.After(order.UpdatedAt) {
		t.Fatalf("expected updatedAt to move forward")
	}
	if records := fx.history(t, order.ID); len(records) != 1 {
		t.Fatalf("expected no audit record for field edits, got %d", len(records))
	}
	if _, err := fx.orders.UpdateFields(context.Background(), UpdateOrderCommand{OrderID: "ord_missing", Title: &title}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderServiceListOrdersFiltersAndPages(t *testing.T) {
	fx := newWorkflowFixture(t)
	fx.createOrder(t, "Maria Souza")
	second := fx.createOrder(t, "João Lima")
	fx.createOrder(t, "Mariana Alves")
	if _, err := fx.orders.TransitionStatus(context.Background(), TransitionCommand{OrderID: second.ID, StatusID: 2}); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	page, err := fx.orders.ListOrders(context.Background(), OrderListFilter{CustomerName: "  mari "})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 customers matching mari, got %d", page.Total)
	}

	page, err = fx.orders.ListOrders(context.Background(), OrderListFilter{StatusIDs: []int{2}})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != second.ID {
		t.Fatalf("expected only the transitioned order, got %+v", page.Items)
	}

	page, err = fx.orders.ListOrders(context.Background(), OrderListFilter{Pagination: domain.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(page.Items) != 2 || page.NextPageToken == "" {
		t.Fatalf("expected a first page of two with a next token, got %d items token %q", len(page.Items), page.NextPageToken)
	}

	if _, err := fx.orders.ListOrders(context.Background(), OrderListFilter{Pagination: domain.Pagination{PageToken: "%%%"}}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid page token to be invalid input, got %v", err)
	}
}

func TestOrderServiceDeleteKeepsHistory(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	if err := fx.orders.DeleteOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if _, err := fx.orders.GetOrder(context.Background(), order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected deleted order to be gone, got %v", err)
	}
	if _, err := fx.orders.History(context.Background(), order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected history of a deleted order to be not found, got %v", err)
	}
	if records := fx.history(t, order.ID); len(records) != 1 {
		t.Fatalf("expected audit records to survive deletion, got %d", len(records))
	}
	if err := fx.orders.DeleteOrder(context.Background(), order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected second delete to be not found, got %v", err)
	}
}

func TestOrderServicePublishFailureIsLogged(t *testing.T) {
	var logged []string
	fx := newWorkflowFixture(t, func(deps *OrderServiceDeps) {
		deps.Events = &recordingPublisher{err: errors.New("pubsub down")}
		deps.Logger = func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		}
	})
	order := fx.createOrder(t, "Maria Souza")
	if order.ID == "" {
		t.Fatalf("expected order despite publish failure")
	}
	if len(logged) != 1 || logged[0] != "order.event.publish.failed" {
		t.Fatalf("expected publish failure log, got %v", logged)
	}
}

func TestOrderServiceGetOrderByNumber(t *testing.T) {
	fx := newWorkflowFixture(t)
	order := fx.createOrder(t, "Maria Souza")

	found, err := fx.orders.GetOrderByNumber(context.Background(), order.OrderNumber)
	if err != nil {
		t.Fatalf("GetOrderByNumber: %v", err)
	}
	if found.ID != order.ID {
		t.Fatalf("expected %s, got %s", order.ID, found.ID)
	}
	if _, err := fx.orders.GetOrderByNumber(context.Background(), 999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := fx.orders.GetOrderByNumber(context.Background(), 0); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

type stubAuditTrail struct {
	appendFn func(ctx context.Context, record TransitionRecord) (TransitionRecord, error)
	listFn   func(ctx context.Context, orderID string) ([]TransitionRecord, error)
}

func (s *stubAuditTrail) Append(ctx context.Context, record TransitionRecord) (TransitionRecord, error) {
	if s.appendFn != nil {
		return s.appendFn(ctx, record)
	}
	return record, nil
}

func (s *stubAuditTrail) ListByOrder(ctx context.Context, orderID string) ([]TransitionRecord, error) {
	if s.listFn != nil {
		return s.listFn(ctx, orderID)
	}
	return nil, nil
}
