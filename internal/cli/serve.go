package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/printhouse/orders-api/internal/di"
	"github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/handlers"
	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/platform/config"
	"github.com/printhouse/orders-api/internal/platform/idempotency"
	"github.com/printhouse/orders-api/internal/platform/jobs"
	"github.com/printhouse/orders-api/internal/platform/observability"
	platformstorage "github.com/printhouse/orders-api/internal/platform/storage"
	"github.com/printhouse/orders-api/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		migrateFirst bool
		seedStatuses bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, migrateFirst, seedStatuses)
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Run database migrations before starting the server (postgres only)")
	cmd.Flags().BoolVar(&seedStatuses, "seed-statuses", false, "Insert the default status catalog entries that are missing")

	return cmd
}

func runServe(ctx context.Context, migrateFirst, seedStatuses bool) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger
	cfg := rt.cfg

	if migrateFirst {
		if err := runMigrations(rt, "up"); err != nil {
			return err
		}
	}

	store, err := openBackend(ctx, rt)
	if err != nil {
		return err
	}

	metrics, err := observability.NewWorkflowMetrics(nil)
	if err != nil {
		return fmt.Errorf("register workflow metrics: %w", err)
	}

	events, closeEvents, err := newEventPublisher(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	archiver, closeArchiver, err := newReportArchiver(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeArchiver()

	container, err := di.NewContainer(ctx, cfg, store.registry, di.Infrastructure{
		Logger:   logger,
		Events:   events,
		Archiver: archiver,
		Metrics:  metrics,
		Build:    buildInfo(rt),
	})
	if err != nil {
		_ = store.registry.Close(ctx)
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	if seedStatuses {
		if err := container.Services.Statuses.Seed(ctx, domain.DefaultStatuses()); err != nil {
			return fmt.Errorf("seed statuses: %w", err)
		}
	}

	idempotencyStore, err := newIdempotencyStore(store)
	if err != nil {
		return err
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	janitorCtx, cancelJanitor := context.WithCancel(context.Background())
	var janitorWG sync.WaitGroup
	janitorWG.Add(1)
	go func() {
		defer janitorWG.Done()
		idempotency.RunJanitor(janitorCtx, idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
	}()
	defer func() {
		cancelJanitor()
		janitorWG.Wait()
	}()

	staffAuth, err := newStaffAuthMiddleware(ctx, cfg)
	if err != nil {
		return err
	}

	router := container.Router(di.RouteMiddlewares{
		Global: []func(http.Handler) http.Handler{
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(traceProjectID(cfg)),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		},
		Staff: []func(http.Handler) http.Handler{
			staffAuth,
			idempotencyMiddleware,
		},
		Integration: []func(http.Handler) http.Handler{
			auth.RequireAPIKey(cfg.Integration.APIKey),
			handlers.RateLimitPerCaller(cfg.Integration.RatePerMinute, cfg.Integration.Burst),
			idempotencyMiddleware,
		},
		Internal: []func(http.Handler) http.Handler{
			newOIDCMiddleware(logger.Named("auth"), cfg),
			idempotencyMiddleware,
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	serverErr := make(chan error, 1)
	go func() {
		serverLogger.Info("orders api listening",
			zap.String("driver", cfg.Database.Driver),
			zap.String("sequencing", cfg.Workflow.Sequencing),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

func newIdempotencyStore(store *backend) (idempotency.Store, error) {
	if store.firestore == nil {
		return idempotency.NewMemoryStore(), nil
	}
	fsStore, err := idempotency.NewFirestoreStore(store.firestore)
	if err != nil {
		return nil, fmt.Errorf("initialise idempotency store: %w", err)
	}
	return fsStore, nil
}

func newStaffAuthMiddleware(ctx context.Context, cfg config.Config) (func(http.Handler) http.Handler, error) {
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase verifier: %w", err)
	}
	return auth.NewAuthenticator(verifier).RequireFirebaseAuth(), nil
}

func newOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, adapter)

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

// newEventPublisher returns a nil publisher when no topic is configured.
func newEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.OrderEventPublisher, func(), error) {
	topicName := strings.TrimSpace(cfg.PubSub.OrderEventsTopic)
	if topicName == "" || cfg.PubSub.ProjectID == "" {
		logger.Info("order events disabled: pubsub topic or project not configured")
		return nil, func() {}, nil
	}
	if host := strings.TrimSpace(cfg.PubSub.EmulatorHost); host != "" && os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		_ = os.Setenv("PUBSUB_EMULATOR_HOST", host)
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	topic.EnableMessageOrdering = true
	publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}, nil
}

// newReportArchiver returns a nil archiver unless bulk reports are archived.
func newReportArchiver(ctx context.Context, cfg config.Config) (services.ReportArchiver, func(), error) {
	if !cfg.Bulk.ArchiveReports {
		return nil, func() {}, nil
	}
	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise storage client: %w", err)
	}
	closeFn := func() { _ = client.Close() }

	writer, err := platformstorage.NewGCSWriter(client)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	var opts []platformstorage.ArchiverOption
	if keyFile := strings.TrimSpace(cfg.Storage.SignerKeyFile); keyFile != "" {
		signer, err := platformstorage.LoadKeySigner(keyFile)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		links, err := platformstorage.NewLinkSigner(signer)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		opts = append(opts, platformstorage.WithDownloadLinks(links, cfg.Storage.ReportLinkTTL))
	}
	archiver, err := platformstorage.NewReportArchiver(writer, cfg.Storage.ExportsBucket, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return archiver, closeFn, nil
}

func buildInfo(rt *runtime) services.BuildInfo {
	version := strings.TrimSpace(rt.env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(rt.env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: rt.cfg.Security.Environment,
		StartedAt:   rt.started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
