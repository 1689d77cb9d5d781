package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/repositories"
	"github.com/printhouse/orders-api/internal/repositories/memory"
)

type capturedRequest struct {
	body    []byte
	headers http.Header
	path    string
}

type captureServer struct {
	*httptest.Server
	status int

	mu       sync.Mutex
	requests []capturedRequest
}

func newCaptureServer(t *testing.T, status int) *captureServer {
	t.Helper()
	srv := &captureServer{status: status}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		srv.mu.Lock()
		srv.requests = append(srv.requests, capturedRequest{body: body, headers: r.Header.Clone(), path: r.URL.Path})
		srv.mu.Unlock()
		w.WriteHeader(srv.status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *captureServer) Requests() []capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedRequest(nil), s.requests...)
}

func addEndpoint(t *testing.T, registry *memory.Registry, id, url string, active bool) {
	t.Helper()
	err := registry.Endpoints().Insert(context.Background(), domain.NotificationEndpoint{
		ID:        id,
		URL:       url,
		Active:    active,
		CreatedAt: time.Date(2025, time.January, 1, 0, 0, len(id), 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("insert endpoint: %v", err)
	}
}

var dispatchTime = time.Date(2025, time.March, 4, 15, 30, 45, 0, time.UTC)

func newTestDispatcher(t *testing.T, endpoints repositories.EndpointRepository, mutate func(*WebhookDispatcherDeps)) NotificationDispatcher {
	t.Helper()
	deps := WebhookDispatcherDeps{
		Endpoints: endpoints,
		Timeout:   2 * time.Second,
		Clock:     func() time.Time { return dispatchTime },
	}
	if mutate != nil {
		mutate(&deps)
	}
	dispatcher, err := NewWebhookDispatcher(deps)
	if err != nil {
		t.Fatalf("NewWebhookDispatcher: %v", err)
	}
	return dispatcher
}

func sampleNotification() Notification {
	return Notification{OrderID: "ord_42", StatusID: 2, StatusName: "Em andamento", OccurredAt: dispatchTime}
}

func TestWebhookDispatcherSendsPayloadToEveryActiveEndpoint(t *testing.T) {
	registry := memory.NewRegistry()
	first := newCaptureServer(t, http.StatusOK)
	second := newCaptureServer(t, http.StatusNoContent)
	inactive := newCaptureServer(t, http.StatusOK)
	addEndpoint(t, registry, "whk_a", first.URL+"/hooks", true)
	addEndpoint(t, registry, "whk_bb", second.URL+"/hooks", true)
	addEndpoint(t, registry, "whk_ccc", inactive.URL+"/hooks", false)

	dispatcher := newTestDispatcher(t, registry.Endpoints(), nil)
	report, err := dispatcher.Dispatch(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !report.Succeeded() || len(report.Results) != 2 {
		t.Fatalf("expected two successful attempts, got %+v", report)
	}
	if report.Results[0].EndpointID != "whk_a" || report.Results[1].HTTPStatus != http.StatusNoContent {
		t.Fatalf("expected results in endpoint order, got %+v", report.Results)
	}
	if len(inactive.Requests()) != 0 {
		t.Fatalf("inactive endpoint must not be called")
	}

	var tokens []string
	for _, srv := range []*captureServer{first, second} {
		requests := srv.Requests()
		if len(requests) != 1 {
			t.Fatalf("expected one request, got %d", len(requests))
		}
		req := requests[0]
		if got := req.headers.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type %q", got)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(req.body, &raw); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(raw) != 3 {
			t.Fatalf("expected exactly data, access_token and json keys, got %s", req.body)
		}
		var payload struct {
			Data        string `json:"data"`
			AccessToken string `json:"access_token"`
			JSON        struct {
				OrderID  string `json:"casa_grafica_id"`
				StatusID int    `json:"status_id"`
				Status   string `json:"status"`
			} `json:"json"`
		}
		if err := json.Unmarshal(req.body, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Data != "2025-03-04 15:30:45" {
			t.Fatalf("unexpected data %q", payload.Data)
		}
		if payload.JSON.OrderID != "ord_42" || payload.JSON.StatusID != 2 || payload.JSON.Status != "Em andamento" {
			t.Fatalf("unexpected status block %+v", payload.JSON)
		}
		tokens = append(tokens, payload.AccessToken)
	}
	if tokens[0] != tokens[1] {
		t.Fatalf("expected one token per dispatch, got %q and %q", tokens[0], tokens[1])
	}
	if len(tokens[0]) != 20 {
		t.Fatalf("expected 20 character token, got %q", tokens[0])
	}
}

func TestWebhookDispatcherReportsRejectedEndpoints(t *testing.T) {
	registry := memory.NewRegistry()
	ok := newCaptureServer(t, http.StatusOK)
	failing := newCaptureServer(t, http.StatusBadGateway)
	addEndpoint(t, registry, "whk_a", ok.URL, true)
	addEndpoint(t, registry, "whk_bb", failing.URL+"/status", true)

	var logged []string
	dispatcher := newTestDispatcher(t, registry.Endpoints(), func(deps *WebhookDispatcherDeps) {
		deps.Logger = func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		}
	})
	report, err := dispatcher.Dispatch(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("a rejected endpoint is reported, not returned: %v", err)
	}
	if report.Succeeded() {
		t.Fatalf("expected failure")
	}
	want := "failed to notify 1 of 2 endpoints: URL: " + failing.URL + "/status, Error: unexpected status 502, Status: 502"
	if got := report.Summary(); got != want {
		t.Fatalf("unexpected summary\n got: %s\nwant: %s", got, want)
	}
	if len(logged) != 1 || logged[0] != "webhook.dispatch.failed" {
		t.Fatalf("expected failure log, got %v", logged)
	}
}

func TestWebhookDispatcherWithoutEndpointsSucceeds(t *testing.T) {
	dispatcher := newTestDispatcher(t, memory.NewRegistry().Endpoints(), func(deps *WebhookDispatcherDeps) {
		deps.TokenGenerator = func() (string, error) {
			t.Fatalf("no token is needed without endpoints")
			return "", nil
		}
	})
	report, err := dispatcher.Dispatch(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !report.Succeeded() || len(report.Results) != 0 || !report.DispatchedAt.Equal(dispatchTime) {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestWebhookDispatcherTimesOutSlowEndpoints(t *testing.T) {
	registry := memory.NewRegistry()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slow.Close)
	addEndpoint(t, registry, "whk_slow", slow.URL, true)

	dispatcher := newTestDispatcher(t, registry.Endpoints(), func(deps *WebhookDispatcherDeps) {
		deps.Timeout = 50 * time.Millisecond
	})
	report, err := dispatcher.Dispatch(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	failures := report.Failures()
	if len(failures) != 1 || failures[0].HTTPStatus != 0 || failures[0].Error == "" {
		t.Fatalf("expected a transport failure, got %+v", report.Results)
	}
	if !strings.Contains(report.Summary(), "Status: N/A") {
		t.Fatalf("expected N/A status in summary, got %s", report.Summary())
	}
}

func TestWebhookDispatcherCircuitBreakerShortCircuits(t *testing.T) {
	registry := memory.NewRegistry()
	var hits atomic.Int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)
	addEndpoint(t, registry, "whk_down", failing.URL, true)

	dispatcher := newTestDispatcher(t, registry.Endpoints(), func(deps *WebhookDispatcherDeps) {
		deps.Breaker = &BreakerSettings{Failures: 1, OpenFor: time.Minute}
	})
	if _, err := dispatcher.Dispatch(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	report, err := dispatcher.Dispatch(context.Background(), sampleNotification())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected the open breaker to skip the endpoint, got %d hits", hits.Load())
	}
	if len(report.Results) != 1 || report.Results[0].Error != ErrEndpointCircuitOpen.Error() {
		t.Fatalf("expected circuit open failure, got %+v", report.Results)
	}
}

func TestWebhookDispatcherSignsRequests(t *testing.T) {
	registry := memory.NewRegistry()
	srv := newCaptureServer(t, http.StatusOK)
	err := registry.Endpoints().Insert(context.Background(), domain.NotificationEndpoint{
		ID:            "whk_signed",
		URL:           srv.URL + "/hooks/status",
		Active:        true,
		SigningSecret: "shh",
	})
	if err != nil {
		t.Fatalf("insert endpoint: %v", err)
	}

	dispatcher := newTestDispatcher(t, registry.Endpoints(), func(deps *WebhookDispatcherDeps) {
		deps.SignatureHeader = "X-Orders-Signature"
		deps.TimestampHeader = "X-Orders-Timestamp"
	})
	if _, err := dispatcher.Dispatch(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	req := srv.Requests()[0]
	unix, err := strconv.ParseInt(req.headers.Get("X-Orders-Timestamp"), 10, 64)
	if err != nil {
		t.Fatalf("parse timestamp header: %v", err)
	}
	if !auth.VerifyWebhookSignature([]byte("shh"), req.path, time.Unix(unix, 0), req.body, req.headers.Get("X-Orders-Signature")) {
		t.Fatalf("signature did not verify")
	}
}

type stubEndpointRepository struct {
	repositories.EndpointRepository
	listFn func(ctx context.Context, activeOnly bool) ([]domain.NotificationEndpoint, error)
}

func (s stubEndpointRepository) List(ctx context.Context, activeOnly bool) ([]domain.NotificationEndpoint, error) {
	return s.listFn(ctx, activeOnly)
}

func TestWebhookDispatcherReturnsListError(t *testing.T) {
	boom := errors.New("firestore unavailable")
	dispatcher := newTestDispatcher(t, stubEndpointRepository{
		listFn: func(context.Context, bool) ([]domain.NotificationEndpoint, error) { return nil, boom },
	}, nil)
	if _, err := dispatcher.Dispatch(context.Background(), sampleNotification()); !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestNewAccessTokenAlphabet(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		token, err := NewAccessToken()
		if err != nil {
			t.Fatalf("NewAccessToken: %v", err)
		}
		if len(token) != accessTokenLength {
			t.Fatalf("unexpected length %d", len(token))
		}
		for _, r := range token {
			if !strings.ContainsRune(accessTokenAlphabet, r) {
				t.Fatalf("unexpected character %q in %s", r, token)
			}
		}
		seen[token] = struct{}{}
	}
	if len(seen) != 50 {
		t.Fatalf("expected distinct tokens, got %d", len(seen))
	}
}

func TestNewWebhookDispatcherValidatesBreaker(t *testing.T) {
	_, err := NewWebhookDispatcher(WebhookDispatcherDeps{
		Endpoints: memory.NewRegistry().Endpoints(),
		Breaker:   &BreakerSettings{Failures: 0, OpenFor: time.Second},
	})
	if err == nil {
		t.Fatalf("expected breaker validation error")
	}
}
