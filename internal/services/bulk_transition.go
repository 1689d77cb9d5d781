package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// BulkTransitionNote is recorded on every order moved by a bulk run.
	BulkTransitionNote = "Status updated in bulk after webhook confirmation"

	bulkMessageUpdated   = "Status updated after webhook confirmation"
	bulkMessageUnchanged = "Order already in requested status"
	bulkMessageInvalidID = "invalid order id"
	bulkRunIDPrefix      = "blk_"
	defaultBulkMaxOrders = 500
)

// BatchOutcome classifies a bulk run.
type BatchOutcome string

const (
	BatchOutcomeSuccess BatchOutcome = "success"
	BatchOutcomePartial BatchOutcome = "partial"
	BatchOutcomeFailed  BatchOutcome = "failed"
)

// BulkOrderResult is the per-order line of a bulk report.
type BulkOrderResult struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BatchReport summarises one bulk run. Results keep the request order.
type BatchReport struct {
	RunID          string            `json:"run_id"`
	StatusID       int               `json:"status_id"`
	ActorID        string            `json:"actor_id,omitempty"`
	Results        []BulkOrderResult `json:"results"`
	Errors         []string          `json:"errors,omitempty"`
	TotalProcessed int               `json:"total_processed"`
	Successes      int               `json:"successes"`
	Failures       int               `json:"failures"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	// ArchiveURL points at the stored copy of the report when archiving is on.
	ArchiveURL string `json:"archive_url,omitempty"`
}

// Outcome is success when nothing failed, failed when nothing succeeded, and partial otherwise.
func (r BatchReport) Outcome() BatchOutcome {
	switch {
	case r.Failures == 0:
		return BatchOutcomeSuccess
	case r.Successes == 0:
		return BatchOutcomeFailed
	}
	return BatchOutcomePartial
}

// BulkTransitionDeps bundles collaborators required to construct the bulk runner.
type BulkTransitionDeps struct {
	Orders   OrderService
	Statuses StatusCatalog
	// Concurrency bounds how many orders are processed at once. Defaults to 1.
	Concurrency int
	MaxOrders   int
	Archiver    ReportArchiver
	Clock       func() time.Time
	IDGenerator func() string
	Metrics     TransitionMetrics
	Tracer      trace.Tracer
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type bulkTransitionRunner struct {
	orders      OrderService
	statuses    StatusCatalog
	concurrency int
	maxOrders   int
	archiver    ReportArchiver
	clock       func() time.Time
	newID       func() string
	metrics     TransitionMetrics
	tracer      trace.Tracer
	logger      func(context.Context, string, map[string]any)
}

// NewBulkTransitionRunner wires the order service into a BulkTransitionRunner.
func NewBulkTransitionRunner(deps BulkTransitionDeps) (BulkTransitionRunner, error) {
	if deps.Orders == nil {
		return nil, errors.New("bulk transition: order service is required")
	}
	if deps.Statuses == nil {
		return nil, errors.New("bulk transition: status catalog is required")
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	maxOrders := deps.MaxOrders
	if maxOrders <= 0 {
		maxOrders = defaultBulkMaxOrders
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
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &bulkTransitionRunner{
		orders:      deps.Orders,
		statuses:    deps.Statuses,
		concurrency: concurrency,
		maxOrders:   maxOrders,
		archiver:    deps.Archiver,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		metrics: deps.Metrics,
		tracer:  tracer,
		logger:  logger,
	}, nil
}

// TransitionMany confirms each order's change with the endpoints before
// persisting it. A failing order never stops the rest of the batch.
func (b *bulkTransitionRunner) TransitionMany(ctx context.Context, cmd BulkTransitionCommand) (BatchReport, error) {
	ids := make([]string, len(cmd.OrderIDs))
	for i, id := range cmd.OrderIDs {
		ids[i] = strings.TrimSpace(id)
	}
	if len(ids) == 0 {
		return BatchReport{}, fmt.Errorf("%w: order ids are required", ErrOrderInvalidInput)
	}
	if len(ids) > b.maxOrders {
		return BatchReport{}, fmt.Errorf("%w: at most %d orders per request", ErrOrderInvalidInput, b.maxOrders)
	}

	status, err := b.statuses.Get(ctx, cmd.StatusID)
	switch {
	case err == nil && !status.Active:
		return BatchReport{}, fmt.Errorf("%w: %d is inactive", ErrInvalidStatus, cmd.StatusID)
	case errors.Is(err, ErrStatusNotFound), errors.Is(err, ErrStatusInvalidInput):
		return BatchReport{}, fmt.Errorf("%w: %d", ErrInvalidStatus, cmd.StatusID)
	case err != nil:
		return BatchReport{}, err
	}

	report := BatchReport{
		RunID:          bulkRunIDPrefix + b.newID(),
		StatusID:       status.ID,
		ActorID:        cmd.Actor.ID,
		Results:        make([]BulkOrderResult, len(ids)),
		TotalProcessed: len(ids),
		StartedAt:      b.clock(),
	}

	ctx, span := b.tracer.Start(ctx, "orders.bulk_transition", trace.WithAttributes(
		attribute.String("bulk.run_id", report.RunID),
		attribute.Int("bulk.orders", len(ids)),
		attribute.Int("order.status_id", status.ID),
	))
	defer span.End()

	b.logger(ctx, "order.bulk.started", map[string]any{
		"runId":    report.RunID,
		"orders":   len(ids),
		"statusId": status.ID,
		"status":   status.Name,
	})

	notes := strings.TrimSpace(cmd.Notes)
	if notes == "" {
		notes = BulkTransitionNote
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, orderID := range ids {
		g.Go(func() error {
			report.Results[i] = b.transitionOne(gctx, orderID, status.ID, notes, cmd.Actor)
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range report.Results {
		if result.Success {
			report.Successes++
			continue
		}
		report.Failures++
		report.Errors = append(report.Errors, fmt.Sprintf("order %s: %s", result.OrderID, result.Message))
	}
	report.FinishedAt = b.clock()

	if report.Outcome() != BatchOutcomeSuccess {
		span.SetStatus(codes.Error, string(report.Outcome()))
	}
	if b.metrics != nil {
		b.metrics.RecordBulkRun(ctx, report.Successes, report.Failures)
	}
	b.logger(ctx, "order.bulk.finished", map[string]any{
		"runId":     report.RunID,
		"successes": report.Successes,
		"failures":  report.Failures,
		"outcome":   string(report.Outcome()),
	})

	if b.archiver != nil {
		if path, err := b.archiver.ArchiveBulkReport(ctx, report); err != nil {
			b.logger(ctx, "order.bulk.archive.failed", map[string]any{
				"runId": report.RunID,
				"error": err.Error(),
			})
		} else {
			report.ArchiveURL = path
			b.logger(ctx, "order.bulk.archived", map[string]any{
				"runId": report.RunID,
			})
		}
	}
	return report, nil
}

func (b *bulkTransitionRunner) transitionOne(ctx context.Context, orderID string, statusID int, notes string, actor Actor) BulkOrderResult {
	result := BulkOrderResult{OrderID: orderID}
	if orderID == "" {
		result.Message = bulkMessageInvalidID
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Message = err.Error()
		return result
	}
	outcome, err := b.orders.TransitionStatus(ctx, TransitionCommand{
		OrderID:    orderID,
		StatusID:   statusID,
		Notes:      notes,
		Actor:      actor,
		Sequencing: NotifyThenPersist,
	})
	if err != nil {
		result.Message = bulkFailureMessage(err)
		return result
	}
	result.Success = true
	result.Message = bulkMessageUpdated
	if !outcome.Changed {
		result.Message = bulkMessageUnchanged
	}
	return result
}

func bulkFailureMessage(err error) string {
	var notifyErr *NotificationError
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return "order not found"
	case errors.As(err, &notifyErr):
		return "external server did not confirm the change: " + notifyErr.Report.Summary()
	case errors.Is(err, ErrNotificationFailed):
		return "external server did not confirm the change: " + err.Error()
	case errors.Is(err, ErrPersistenceFailed):
		return "database error: " + err.Error()
	}
	return err.Error()
}
