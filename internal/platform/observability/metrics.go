package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/printhouse/orders-api/internal/platform/observability"

// WorkflowMetrics records order workflow instruments on an otel meter.
type WorkflowMetrics struct {
	attempts    metric.Int64Counter
	latency     metric.Float64Histogram
	transitions metric.Int64Counter
	bulkOrders  metric.Int64Counter
	apiCalls    metric.Int64Counter
}

// NewWorkflowMetrics registers the workflow instruments. A nil meter uses the global provider.
func NewWorkflowMetrics(meter metric.Meter) (*WorkflowMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	attempts, err := meter.Int64Counter("orders.webhook.attempts",
		metric.WithDescription("Webhook delivery attempts by outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("orders.webhook.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Webhook delivery latency in milliseconds"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("orders.status.transitions",
		metric.WithDescription("Status transition attempts by sequencing and outcome"))
	if err != nil {
		return nil, err
	}
	bulkOrders, err := meter.Int64Counter("orders.bulk.orders",
		metric.WithDescription("Orders processed by bulk status changes by outcome"))
	if err != nil {
		return nil, err
	}
	apiCalls, err := meter.Int64Counter("orders.integration.calls",
		metric.WithDescription("Integration API calls by operation and outcome"))
	if err != nil {
		return nil, err
	}
	return &WorkflowMetrics{
		attempts:    attempts,
		latency:     latency,
		transitions: transitions,
		bulkOrders:  bulkOrders,
		apiCalls:    apiCalls,
	}, nil
}

// RecordDispatchAttempt counts one webhook delivery.
func (m *WorkflowMetrics) RecordDispatchAttempt(ctx context.Context, success bool, httpStatus int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.String("http_status", strconv.Itoa(httpStatus)),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordTransition counts one status transition attempt.
func (m *WorkflowMetrics) RecordTransition(ctx context.Context, sequencing, outcome string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sequencing", sequencing),
		attribute.String("outcome", outcome),
	))
}

// RecordBulkRun counts the successes and failures of one bulk run.
func (m *WorkflowMetrics) RecordBulkRun(ctx context.Context, successes, failures int) {
	m.bulkOrders.Add(ctx, int64(successes), metric.WithAttributes(attribute.String("outcome", "success")))
	m.bulkOrders.Add(ctx, int64(failures), metric.WithAttributes(attribute.String("outcome", "failure")))
}

// RecordAPICall counts one integration API call.
func (m *WorkflowMetrics) RecordAPICall(ctx context.Context, operation string, failed bool) {
	m.apiCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("failed", failed),
	))
}
