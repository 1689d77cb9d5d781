package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/printhouse/orders-api/internal/handlers"
	"github.com/printhouse/orders-api/internal/platform/config"
	"github.com/printhouse/orders-api/internal/platform/observability"
	"github.com/printhouse/orders-api/internal/repositories"
	"github.com/printhouse/orders-api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Statuses    services.StatusCatalog
	Endpoints   services.WebhookEndpointService
	Dispatcher  services.NotificationDispatcher
	Orders      services.OrderService
	Bulk        services.BulkTransitionRunner
	Integration services.IntegrationService
	CallLog     services.IntegrationMetrics
	System      services.SystemService
}

// Infrastructure carries the optional collaborators built by the caller. Nil
// fields disable the matching feature.
type Infrastructure struct {
	Logger     *zap.Logger
	Events     services.OrderEventPublisher
	Archiver   services.ReportArchiver
	Metrics    *observability.WorkflowMetrics
	HTTPClient services.HTTPDoer
	Build      services.BuildInfo
	Clock      func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	logger  *zap.Logger
	metrics *observability.WorkflowMetrics
	build   services.BuildInfo
}

// NewContainer constructs the runtime dependencies. Production wiring passes a
// Firestore or Postgres registry, while tests can supply the in-memory one.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if infra.Logger == nil {
		infra.Logger = zap.NewNop()
	}
	if infra.Clock == nil {
		infra.Clock = time.Now
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		logger:       infra.Logger,
		metrics:      infra.Metrics,
		build:        infra.Build,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services
	logger := observability.ServiceLogger(infra.Logger.Named("services"))

	// Typed nils must not leak into the metric interfaces.
	var (
		dispatchMetrics   services.DispatchMetrics
		transitionMetrics services.TransitionMetrics
	)
	if infra.Metrics != nil {
		dispatchMetrics = infra.Metrics
		transitionMetrics = infra.Metrics
	}

	statuses, err := services.NewStatusCatalog(services.StatusCatalogDeps{
		Statuses:   reg.Statuses(),
		UnitOfWork: reg,
		Clock:      infra.Clock,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build status catalog: %w", err)
	}
	svc.Statuses = statuses

	endpoints, err := services.NewWebhookEndpointService(services.WebhookEndpointServiceDeps{
		Endpoints: reg.Endpoints(),
		Clock:     infra.Clock,
		Logger:    logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build webhook endpoint service: %w", err)
	}
	svc.Endpoints = endpoints

	var breaker *services.BreakerSettings
	if cfg.Webhooks.BreakerEnabled {
		breaker = &services.BreakerSettings{
			Failures: cfg.Webhooks.BreakerFailures,
			OpenFor:  cfg.Webhooks.BreakerOpenFor,
		}
	}
	dispatcher, err := services.NewWebhookDispatcher(services.WebhookDispatcherDeps{
		Endpoints:       reg.Endpoints(),
		HTTPClient:      infra.HTTPClient,
		Timeout:         cfg.Webhooks.Timeout,
		Breaker:         breaker,
		SignatureHeader: cfg.Webhooks.SignatureHeader,
		TimestampHeader: cfg.Webhooks.TimestampHeader,
		Clock:           infra.Clock,
		Metrics:         dispatchMetrics,
		Logger:          logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build webhook dispatcher: %w", err)
	}
	svc.Dispatcher = dispatcher

	audit, err := services.NewAuditTrail(services.AuditTrailDeps{
		Transitions: reg.Transitions(),
		Clock:       infra.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build audit trail: %w", err)
	}

	var policy services.TransitionPolicy
	if cfg.Workflow.EnforceAdjacency {
		if len(cfg.Workflow.Transitions) == 0 {
			return Services{}, errors.New("build order service: adjacency enforcement requires a transition table")
		}
		policy = services.NewAdjacencyPolicy(cfg.Workflow.Transitions)
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Counters:   reg.Counters(),
		Statuses:   statuses,
		Audit:      audit,
		Dispatcher: dispatcher,
		UnitOfWork: reg,
		Policy:     policy,
		Sequencing: services.Sequencing(cfg.Workflow.Sequencing),
		Clock:      infra.Clock,
		Events:     infra.Events,
		Metrics:    transitionMetrics,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	var archiver services.ReportArchiver
	if cfg.Bulk.ArchiveReports {
		archiver = infra.Archiver
	}
	bulk, err := services.NewBulkTransitionRunner(services.BulkTransitionDeps{
		Orders:      orders,
		Statuses:    statuses,
		Concurrency: cfg.Bulk.Concurrency,
		MaxOrders:   cfg.Bulk.MaxOrders,
		Archiver:    archiver,
		Clock:       infra.Clock,
		Metrics:     transitionMetrics,
		Logger:      logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build bulk transition runner: %w", err)
	}
	svc.Bulk = bulk

	integration, err := services.NewIntegrationService(services.IntegrationServiceDeps{
		Orders:         orders,
		Statuses:       statuses,
		CancelStatusID: cfg.Workflow.CancelStatusID,
		Logger:         logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build integration service: %w", err)
	}
	svc.Integration = integration
	svc.CallLog = services.NewIntegrationCallLog(cfg.Integration.CallLogEntries, infra.Clock)

	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Statuses:         statuses,
		Clock:            infra.Clock,
		Build:            infra.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = system

	return svc, nil
}

// RouteMiddlewares groups the authentication chains placed in front of each
// route family. Idempotency runs after authentication so keys are scoped per caller.
type RouteMiddlewares struct {
	Global      []func(http.Handler) http.Handler
	Staff       []func(http.Handler) http.Handler
	Integration []func(http.Handler) http.Handler
	Internal    []func(http.Handler) http.Handler
}

// Router builds the HTTP handler tree over the container's services.
func (c *Container) Router(mw RouteMiddlewares) http.Handler {
	svc := c.Services

	orderHandlers := handlers.NewOrderHandlers(svc.Orders, svc.Bulk)
	statusHandlers := handlers.NewStatusHandlers(svc.Statuses)
	webhookHandlers := handlers.NewWebhookHandlers(svc.Endpoints)
	internalHandlers := handlers.NewInternalHandlers(svc.Bulk)

	integrationOpts := []handlers.IntegrationOption{}
	if c.metrics != nil {
		integrationOpts = append(integrationOpts, handlers.WithIntegrationCallCounter(c.metrics))
	}
	integrationHandlers := handlers.NewIntegrationHandlers(svc.Integration, svc.CallLog, integrationOpts...)

	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(c.build),
		handlers.WithHealthSystemService(svc.System),
	)

	return handlers.NewRouter(
		handlers.WithMiddlewares(mw.Global...),
		handlers.WithRequestTimeout(c.Config.Server.RequestTimeout),
		handlers.WithHealthHandlers(health),
		handlers.WithStaffMiddlewares(mw.Staff...),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithStatusRoutes(statusHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithIntegrationMiddlewares(mw.Integration...),
		handlers.WithIntegrationRoutes(integrationHandlers.Routes),
		handlers.WithInternalMiddlewares(mw.Internal...),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	)
}
