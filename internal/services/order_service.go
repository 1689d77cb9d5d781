package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/pagination"
	"github.com/printhouse/orders-api/internal/platform/textutil"
	"github.com/printhouse/orders-api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix    = "ord_"
	orderCounterID   = "orders"
	creationNote     = "Pedido criado"
	maxOrderTextSize = 500

	transitionOutcomeChanged      = "changed"
	transitionOutcomeNoop         = "noop"
	transitionOutcomeRejected     = "rejected"
	transitionOutcomeNotification = "notification_failed"
	transitionOutcomePersistence  = "persistence_failed"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Counters   repositories.CounterRepository
	Statuses   StatusCatalog
	Audit      AuditTrail
	Dispatcher NotificationDispatcher
	UnitOfWork repositories.UnitOfWork
	Policy     TransitionPolicy
	// Sequencing applies to transitions that do not choose one. Defaults to PersistThenNotify.
	Sequencing  Sequencing
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Metrics     TransitionMetrics
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	statuses   StatusCatalog
	audit      AuditTrail
	dispatcher NotificationDispatcher
	unitOfWork repositories.UnitOfWork
	policy     TransitionPolicy
	sequencing Sequencing
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	metrics    TransitionMetrics
	logger     func(context.Context, string, map[string]any)
	locks      *keyedMutex
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Statuses == nil {
		return nil, errors.New("order service: status catalog is required")
	}
	if deps.Audit == nil {
		return nil, errors.New("order service: audit trail is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("order service: notification dispatcher is required")
	}

	sequencing := deps.Sequencing
	if sequencing == "" {
		sequencing = PersistThenNotify
	}
	if !sequencing.Valid() {
		return nil, fmt.Errorf("order service: unknown sequencing %q", sequencing)
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	policy := deps.Policy
	if policy == nil {
		policy = AllowAllTransitions{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		statuses:   deps.Statuses,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		unitOfWork: unit,
		policy:     policy,
		sequencing: sequencing,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logger,
		locks:   newKeyedMutex(),
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	customerName := strings.TrimSpace(cmd.Customer.Name)
	if customerName == "" {
		return Order{}, fmt.Errorf("%w: customer name is required", ErrOrderInvalidInput)
	}
	if cmd.ValueCents < 0 || cmd.ShippingCents < 0 {
		return Order{}, fmt.Errorf("%w: amounts must not be negative", ErrOrderInvalidInput)
	}
	if cmd.OrderNumber != nil && *cmd.OrderNumber <= 0 {
		return Order{}, fmt.Errorf("%w: order number must be positive", ErrOrderInvalidInput)
	}
	items, err := normalizeItems(cmd.Items)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	customer := cmd.Customer
	customer.Name = customerName
	customer.Email = strings.TrimSpace(customer.Email)

	source := strings.TrimSpace(cmd.Source)
	if source == "" {
		source = domain.OrderSourceBackoffice
	}

	order := Order{
		ID:             s.nextOrderID(),
		Title:          textutil.PlainText(cmd.Title, maxOrderTextSize),
		Description:    textutil.PlainText(cmd.Description, maxNoteLength),
		ValueCents:     cmd.ValueCents,
		ShippingCents:  cmd.ShippingCents,
		ShippingMethod: strings.TrimSpace(cmd.ShippingMethod),
		ShippingLabel:  strings.TrimSpace(cmd.ShippingLabel),
		Customer:       customer,
		Shipping:       cmd.Shipping,
		Items:          items,
		StatusID:       domain.InitialStatusID,
		OwnerID:        strings.TrimSpace(cmd.OwnerID),
		Source:         source,
		Metadata:       maps.Clone(cmd.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	notes := strings.TrimSpace(cmd.Notes)
	if notes == "" {
		notes = creationNote
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if cmd.OrderNumber != nil {
			order.OrderNumber = *cmd.OrderNumber
		} else {
			next, err := s.counters.Next(txCtx, orderCounterID, 1)
			if err != nil {
				return err
			}
			order.OrderNumber = next
		}
		if order.Title == "" {
			order.Title = fmt.Sprintf("Pedido #%d", order.OrderNumber)
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return err
		}
		_, err := s.audit.Append(txCtx, TransitionRecord{
			OrderID:     order.ID,
			NewStatusID: order.StatusID,
			Action:      domain.ActionCreation,
			Notes:       notes,
			ActorID:     actorRef(cmd.Actor),
			CreatedAt:   now,
		})
		return err
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:        orderEventCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		StatusID:    order.StatusID,
		ActorID:     cmd.Actor.ID,
		OccurredAt:  now,
		Metadata:    map[string]any{"source": order.Source},
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, number int64) (Order, error) {
	if number <= 0 {
		return Order{}, fmt.Errorf("%w: order number must be positive", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	size := filter.Pagination.PageSize
	switch {
	case size <= 0:
		size = pagination.DefaultPageSize
	case size > pagination.DefaultMaxPageSize:
		size = pagination.DefaultMaxPageSize
	}
	filter.Pagination.PageSize = size
	filter.CustomerName = strings.TrimSpace(filter.CustomerName)
	filter.SKU = strings.TrimSpace(filter.SKU)
	filter.OwnerID = strings.TrimSpace(filter.OwnerID)
	if filter.IssuedOn.From != nil && filter.IssuedOn.To != nil && filter.IssuedOn.To.Before(*filter.IssuedOn.From) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: issue date range is inverted", ErrOrderInvalidInput)
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// Validate checks the edit without touching storage.
func (cmd UpdateOrderCommand) Validate() error {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Customer != nil && strings.TrimSpace(cmd.Customer.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrOrderInvalidInput)
	}
	if (cmd.ValueCents != nil && *cmd.ValueCents < 0) || (cmd.ShippingCents != nil && *cmd.ShippingCents < 0) {
		return fmt.Errorf("%w: amounts must not be negative", ErrOrderInvalidInput)
	}
	if cmd.Items != nil {
		if _, err := normalizeItems(cmd.Items); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderService) UpdateFields(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	if err := cmd.Validate(); err != nil {
		return Order{}, err
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	var items []OrderItem
	if cmd.Items != nil {
		normalized, err := normalizeItems(cmd.Items)
		if err != nil {
			return Order{}, err
		}
		items = normalized
	}

	unlock, err := s.locks.Lock(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	defer unlock()

	var updated Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if cmd.Title != nil {
			order.Title = textutil.PlainText(*cmd.Title, maxOrderTextSize)
		}
		if cmd.Description != nil {
			order.Description = textutil.PlainText(*cmd.Description, maxNoteLength)
		}
		if cmd.ValueCents != nil {
			order.ValueCents = *cmd.ValueCents
		}
		if cmd.ShippingCents != nil {
			order.ShippingCents = *cmd.ShippingCents
		}
		if cmd.ShippingMethod != nil {
			order.ShippingMethod = strings.TrimSpace(*cmd.ShippingMethod)
		}
		if cmd.ShippingLabel != nil {
			order.ShippingLabel = strings.TrimSpace(*cmd.ShippingLabel)
		}
		if cmd.Customer != nil {
			customer := *cmd.Customer
			customer.Name = strings.TrimSpace(customer.Name)
			order.Customer = customer
		}
		if cmd.Shipping != nil {
			order.Shipping = *cmd.Shipping
		}
		if items != nil {
			order.Items = items
		}
		if cmd.Metadata != nil {
			if order.Metadata == nil {
				order.Metadata = make(map[string]any, len(cmd.Metadata))
			}
			maps.Copy(order.Metadata, cmd.Metadata)
		}
		order.UpdatedAt = s.now()
		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

// DeleteOrder removes the order. Its audit trail stays.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	unlock, err := s.locks.Lock(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.runInTx(ctx, func(txCtx context.Context) error {
		return s.orders.Delete(txCtx, orderID)
	}); err != nil {
		return s.mapRepositoryError(err)
	}
	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventDeleted,
		OrderID:    orderID,
		OccurredAt: s.now(),
	})
	return nil
}

// TransitionStatus moves an order to cmd.StatusID. The status only changes, and
// the audit record only exists, if every active endpoint confirmed the change.
func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionCommand) (TransitionResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return TransitionResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	sequencing := cmd.Sequencing
	if sequencing == "" {
		sequencing = s.sequencing
	}
	if !sequencing.Valid() {
		return TransitionResult{}, fmt.Errorf("%w: unknown sequencing %q", ErrOrderInvalidInput, sequencing)
	}
	action := cmd.Action
	if action == "" {
		action = domain.ActionStatusChange
	}
	if action != domain.ActionStatusChange && action != domain.ActionSystem {
		return TransitionResult{}, fmt.Errorf("%w: action %q cannot change status", ErrOrderInvalidInput, action)
	}

	status, err := s.targetStatus(ctx, cmd.StatusID)
	if err != nil {
		s.recordTransition(ctx, sequencing, transitionOutcomeRejected)
		return TransitionResult{}, err
	}

	unlock, err := s.locks.Lock(ctx, orderID)
	if err != nil {
		return TransitionResult{}, err
	}
	defer unlock()

	cmd.OrderID = orderID
	cmd.Action = action
	cmd.Notes = textutil.PlainText(cmd.Notes, maxNoteLength)

	var (
		result   TransitionResult
		previous int
	)
	switch sequencing {
	case NotifyThenPersist:
		result, previous, err = s.notifyThenPersist(ctx, cmd, status)
	default:
		result, previous, err = s.persistThenNotify(ctx, cmd, status)
	}
	if err != nil {
		err = s.mapTransitionError(err)
		s.recordTransition(ctx, sequencing, transitionOutcome(err))
		s.logger(ctx, "order.transition.failed", map[string]any{
			"orderId":    orderID,
			"statusId":   status.ID,
			"sequencing": string(sequencing),
			"error":      err.Error(),
		})
		return TransitionResult{}, err
	}
	if !result.Changed {
		s.recordTransition(ctx, sequencing, transitionOutcomeNoop)
		return result, nil
	}

	s.recordTransition(ctx, sequencing, transitionOutcomeChanged)
	s.publishEvent(ctx, OrderEvent{
		Type:             orderEventStatusChanged,
		OrderID:          result.Order.ID,
		OrderNumber:      result.Order.OrderNumber,
		PreviousStatusID: intRef(previous),
		StatusID:         result.Order.StatusID,
		ActorID:          cmd.Actor.ID,
		OccurredAt:       result.Record.CreatedAt,
		Metadata: map[string]any{
			"sequencing": string(sequencing),
			"endpoints":  len(result.Dispatch.Results),
			"action":     string(cmd.Action),
		},
	})
	return result, nil
}

// persistThenNotify writes the change and dispatches inside one unit of work;
// a dispatch failure aborts the unit of work so nothing is kept.
func (s *orderService) persistThenNotify(ctx context.Context, cmd TransitionCommand, status Status) (TransitionResult, int, error) {
	var (
		result   TransitionResult
		previous int
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindForUpdate(txCtx, cmd.OrderID)
		if err != nil {
			return err
		}
		previous = order.StatusID
		if order.StatusID == status.ID {
			result = TransitionResult{Order: order}
			return nil
		}
		if !s.policy.Allowed(order.StatusID, status.ID) {
			return fmt.Errorf("%w: %d -> %d", ErrTransitionNotAllowed, order.StatusID, status.ID)
		}

		now := s.now()
		order.StatusID = status.ID
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		record, err := s.audit.Append(txCtx, s.transitionRecord(cmd, previous, now))
		if err != nil {
			return err
		}

		report, err := s.dispatch(txCtx, order, status, now)
		if err != nil {
			return err
		}
		result = TransitionResult{Order: order, Record: &record, Changed: true, Dispatch: report}
		return nil
	})
	if err != nil {
		return TransitionResult{}, previous, err
	}
	return result, previous, nil
}

// notifyThenPersist confirms the change with every endpoint first and opens the
// unit of work only after all of them accepted it.
func (s *orderService) notifyThenPersist(ctx context.Context, cmd TransitionCommand, status Status) (TransitionResult, int, error) {
	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return TransitionResult{}, 0, err
	}
	if order.StatusID == status.ID {
		return TransitionResult{Order: order}, order.StatusID, nil
	}
	if !s.policy.Allowed(order.StatusID, status.ID) {
		return TransitionResult{}, order.StatusID, fmt.Errorf("%w: %d -> %d", ErrTransitionNotAllowed, order.StatusID, status.ID)
	}

	now := s.now()
	report, err := s.dispatch(ctx, order, status, now)
	if err != nil {
		return TransitionResult{}, order.StatusID, err
	}

	var (
		result   TransitionResult
		previous int
	)
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindForUpdate(txCtx, cmd.OrderID)
		if err != nil {
			return err
		}
		previous = current.StatusID
		if current.StatusID == status.ID {
			result = TransitionResult{Order: current, Dispatch: report}
			return nil
		}
		current.StatusID = status.ID
		current.UpdatedAt = now
		if err := s.orders.Update(txCtx, current); err != nil {
			return err
		}
		record, err := s.audit.Append(txCtx, s.transitionRecord(cmd, previous, now))
		if err != nil {
			return err
		}
		result = TransitionResult{Order: current, Record: &record, Changed: true, Dispatch: report}
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.transition.persist_after_notify.failed", map[string]any{
			"orderId":   cmd.OrderID,
			"statusId":  status.ID,
			"endpoints": len(report.Results),
			"error":     err.Error(),
		})
		return TransitionResult{}, previous, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return result, previous, nil
}

func (s *orderService) dispatch(ctx context.Context, order Order, status Status, at time.Time) (DispatchReport, error) {
	report, err := s.dispatcher.Dispatch(ctx, Notification{
		OrderID:    order.ID,
		StatusID:   status.ID,
		StatusName: status.Name,
		OccurredAt: at,
	})
	if err != nil {
		return DispatchReport{}, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	if !report.Succeeded() {
		return report, &NotificationError{Report: report}
	}
	return report, nil
}

func (s *orderService) transitionRecord(cmd TransitionCommand, previous int, at time.Time) TransitionRecord {
	return TransitionRecord{
		OrderID:          cmd.OrderID,
		PreviousStatusID: intRef(previous),
		NewStatusID:      cmd.StatusID,
		Action:           cmd.Action,
		Notes:            cmd.Notes,
		ExtraData:        cmd.ExtraData,
		ActorID:          actorRef(cmd.Actor),
		CreatedAt:        at,
	}
}

// targetStatus resolves the requested status; unknown and inactive ids are invalid.
func (s *orderService) targetStatus(ctx context.Context, statusID int) (Status, error) {
	status, err := s.statuses.Get(ctx, statusID)
	switch {
	case err == nil:
	case errors.Is(err, ErrStatusNotFound), errors.Is(err, ErrStatusInvalidInput):
		return Status{}, fmt.Errorf("%w: %d", ErrInvalidStatus, statusID)
	default:
		return Status{}, s.mapRepositoryError(err)
	}
	if !status.Active {
		return Status{}, fmt.Errorf("%w: %d is inactive", ErrInvalidStatus, statusID)
	}
	return status, nil
}

func (s *orderService) AddNote(ctx context.Context, cmd AddNoteCommand) (TransitionRecord, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return TransitionRecord{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	note := textutil.PlainText(cmd.Note, maxNoteLength)
	if note == "" {
		return TransitionRecord{}, fmt.Errorf("%w: note is required", ErrOrderInvalidInput)
	}

	unlock, err := s.locks.Lock(ctx, orderID)
	if err != nil {
		return TransitionRecord{}, err
	}
	defer unlock()

	var record TransitionRecord
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		record, err = s.audit.Append(txCtx, TransitionRecord{
			OrderID:          order.ID,
			PreviousStatusID: intRef(order.StatusID),
			NewStatusID:      order.StatusID,
			Action:           domain.ActionNote,
			Notes:            note,
			ActorID:          actorRef(cmd.Actor),
			CreatedAt:        s.now(),
		})
		return err
	})
	if err != nil {
		return TransitionRecord{}, s.mapRepositoryError(err)
	}
	return record, nil
}

func (s *orderService) History(ctx context.Context, orderID string) ([]TransitionRecord, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	records, err := s.audit.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return records, nil
}

func (s *orderService) mapTransitionError(err error) error {
	switch {
	case errors.Is(err, ErrNotificationFailed),
		errors.Is(err, ErrTransitionNotAllowed),
		errors.Is(err, ErrPersistenceFailed),
		errors.Is(err, ErrOrderInvalidInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderInvalidInput) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		}
	}
	return fmt.Errorf("order repository error: %w", err)
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotificationFailed):
		return transitionOutcomeNotification
	case errors.Is(err, ErrPersistenceFailed):
		return transitionOutcomePersistence
	}
	return transitionOutcomeRejected
}

func (s *orderService) recordTransition(ctx context.Context, sequencing Sequencing, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, string(sequencing), outcome)
	}
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.StatusID,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func normalizeItems(items []OrderItem) ([]OrderItem, error) {
	if len(items) == 0 {
		return []OrderItem{}, nil
	}
	out := make([]OrderItem, 0, len(items))
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		item.SKU = strings.TrimSpace(item.SKU)
		if item.Name == "" && item.SKU == "" {
			return nil, fmt.Errorf("%w: item %d needs a name or sku", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		if item.UnitCents < 0 {
			return nil, fmt.Errorf("%w: item %d price must not be negative", ErrOrderInvalidInput, i)
		}
		if item.Attributes != nil {
			item.Attributes = maps.Clone(item.Attributes)
		}
		out = append(out, item)
	}
	return slices.Clip(out), nil
}
