package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/repositories"
)

const (
	webhookTimestampLayout = "2006-01-02 15:04:05"
	accessTokenLength      = 20
	accessTokenAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	defaultWebhookTimeout  = 10 * time.Second
	maxWebhookDrainBytes   = 64 << 10
	tracerName             = "github.com/printhouse/orders-api/internal/services"
)

var errAttemptRejected = errors.New("webhook: attempt rejected")

// HTTPDoer is the subset of *http.Client the dispatcher needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BreakerSettings enables a circuit breaker per endpoint.
type BreakerSettings struct {
	// Failures is the number of consecutive failed attempts that opens the breaker.
	Failures int
	// OpenFor is how long the breaker stays open before letting one probe through.
	OpenFor time.Duration
}

// WebhookDispatcherDeps bundles collaborators required to construct the dispatcher.
type WebhookDispatcherDeps struct {
	Endpoints       repositories.EndpointRepository
	HTTPClient      HTTPDoer
	Timeout         time.Duration
	Breaker         *BreakerSettings
	SignatureHeader string
	TimestampHeader string
	Clock           func() time.Time
	TokenGenerator  func() (string, error)
	Metrics         DispatchMetrics
	Tracer          trace.Tracer
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type webhookDispatcher struct {
	endpoints       repositories.EndpointRepository
	client          HTTPDoer
	timeout         time.Duration
	breaker         *BreakerSettings
	signatureHeader string
	timestampHeader string
	clock           func() time.Time
	newToken        func() (string, error)
	metrics         DispatchMetrics
	tracer          trace.Tracer
	logger          func(context.Context, string, map[string]any)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

type webhookPayload struct {
	Data        string        `json:"data"`
	AccessToken string        `json:"access_token"`
	JSON        webhookStatus `json:"json"`
}

type webhookStatus struct {
	OrderID  string `json:"casa_grafica_id"`
	StatusID int    `json:"status_id"`
	Status   string `json:"status"`
}

// NewWebhookDispatcher builds the NotificationDispatcher that POSTs status changes to every active endpoint.
func NewWebhookDispatcher(deps WebhookDispatcherDeps) (NotificationDispatcher, error) {
	if deps.Endpoints == nil {
		return nil, errors.New("webhook dispatcher: endpoint repository is required")
	}
	if deps.Breaker != nil && (deps.Breaker.Failures <= 0 || deps.Breaker.OpenFor <= 0) {
		return nil, errors.New("webhook dispatcher: breaker failures and open duration must be positive")
	}
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	tokenGen := deps.TokenGenerator
	if tokenGen == nil {
		tokenGen = NewAccessToken
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &webhookDispatcher{
		endpoints:       deps.Endpoints,
		client:          client,
		timeout:         timeout,
		breaker:         deps.Breaker,
		signatureHeader: strings.TrimSpace(deps.SignatureHeader),
		timestampHeader: strings.TrimSpace(deps.TimestampHeader),
		clock: func() time.Time {
			return clock().UTC()
		},
		newToken: tokenGen,
		metrics:  deps.Metrics,
		tracer:   tracer,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

// Dispatch notifies every active endpoint concurrently and waits for all of
// them. The returned error covers failures before any attempt was made; a
// delivered-but-rejected notification shows up only in the report.
func (d *webhookDispatcher) Dispatch(ctx context.Context, notification Notification) (DispatchReport, error) {
	ctx, span := d.tracer.Start(ctx, "webhook.dispatch", trace.WithAttributes(
		attribute.String("order.id", notification.OrderID),
		attribute.Int("order.status_id", notification.StatusID),
	))
	defer span.End()

	endpoints, err := d.endpoints.List(ctx, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list endpoints")
		return DispatchReport{}, fmt.Errorf("webhook: list endpoints: %w", err)
	}

	report := DispatchReport{DispatchedAt: d.clock()}
	span.SetAttributes(attribute.Int("webhook.endpoints", len(endpoints)))
	if len(endpoints) == 0 {
		return report, nil
	}

	token, err := d.newToken()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "access token")
		return DispatchReport{}, fmt.Errorf("webhook: access token: %w", err)
	}
	body, err := json.Marshal(webhookPayload{
		Data:        report.DispatchedAt.Format(webhookTimestampLayout),
		AccessToken: token,
		JSON: webhookStatus{
			OrderID:  notification.OrderID,
			StatusID: notification.StatusID,
			Status:   notification.StatusName,
		},
	})
	if err != nil {
		return DispatchReport{}, fmt.Errorf("webhook: encode payload: %w", err)
	}

	report.Results = make([]NotificationAttemptResult, len(endpoints))
	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Results[i] = d.attempt(ctx, endpoint, body)
		}()
	}
	wg.Wait()

	if !report.Succeeded() {
		summary := report.Summary()
		span.SetStatus(codes.Error, summary)
		d.logger(ctx, "webhook.dispatch.failed", map[string]any{
			"orderId":  notification.OrderID,
			"statusId": notification.StatusID,
			"failed":   len(report.Failures()),
			"total":    len(report.Results),
			"summary":  summary,
		})
	}
	return report, nil
}

func (d *webhookDispatcher) attempt(ctx context.Context, endpoint NotificationEndpoint, body []byte) NotificationAttemptResult {
	if d.breaker == nil {
		return d.post(ctx, endpoint, body)
	}
	var result NotificationAttemptResult
	_, err := d.breakerFor(endpoint.ID).Execute(func() (interface{}, error) {
		result = d.post(ctx, endpoint, body)
		if !result.Success {
			return nil, errAttemptRejected
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NotificationAttemptResult{
			EndpointID: endpoint.ID,
			URL:        endpoint.URL,
			Error:      ErrEndpointCircuitOpen.Error(),
		}
	}
	return result
}

func (d *webhookDispatcher) post(ctx context.Context, endpoint NotificationEndpoint, body []byte) NotificationAttemptResult {
	result := NotificationAttemptResult{EndpointID: endpoint.ID, URL: endpoint.URL}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if d.metrics != nil {
			d.metrics.RecordDispatchAttempt(ctx, result.Success, result.HTTPStatus, result.Duration)
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	if secret := endpoint.SigningSecret; secret != "" && d.signatureHeader != "" {
		signedAt := d.clock()
		req.Header.Set(d.signatureHeader, auth.SignWebhook([]byte(secret), signaturePath(endpoint.URL), signedAt, body))
		if d.timestampHeader != "" {
			req.Header.Set(d.timestampHeader, strconv.FormatInt(signedAt.Unix(), 10))
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxWebhookDrainBytes))

	result.HTTPStatus = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		return result
	}
	result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	return result
}

func (d *webhookDispatcher) breakerFor(endpointID string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := d.breakers[endpointID]; ok {
		return cb
	}
	failures := uint32(d.breaker.Failures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook:" + endpointID,
		MaxRequests: 1,
		Timeout:     d.breaker.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
	d.breakers[endpointID] = cb
	return cb
}

func signaturePath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}

// NewAccessToken returns a 20 character alphanumeric token drawn from crypto/rand.
func NewAccessToken() (string, error) {
	limit := big.NewInt(int64(len(accessTokenAlphabet)))
	buf := make([]byte, accessTokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = accessTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
