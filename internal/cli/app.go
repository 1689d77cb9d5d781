package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/printhouse/orders-api/internal/platform/config"
	pfirestore "github.com/printhouse/orders-api/internal/platform/firestore"
	"github.com/printhouse/orders-api/internal/platform/observability"
	"github.com/printhouse/orders-api/internal/platform/secrets"
	"github.com/printhouse/orders-api/internal/repositories"
	firestoreRepo "github.com/printhouse/orders-api/internal/repositories/firestore"
	"github.com/printhouse/orders-api/internal/repositories/memory"
	"github.com/printhouse/orders-api/internal/repositories/postgres"
)

const secretHealthReference = "secret://system-healthz"

// runtime is the state shared by every subcommand: resolved configuration,
// the process logger and the secret fetcher.
type runtime struct {
	env     map[string]string
	cfg     config.Config
	logger  *zap.Logger
	fetcher *secrets.Fetcher
	started time.Time
}

func bootstrap(ctx context.Context) (*runtime, error) {
	started := time.Now().UTC()

	envValues, err := config.EnvironmentValues(config.WithEnvFile(envFile))
	if err != nil {
		return nil, fmt.Errorf("read environment values: %w", err)
	}

	baseLogger, err := observability.NewLogger(envValues["API_LOG_LEVEL"])
	if err != nil {
		return nil, fmt.Errorf("initialise logger: %w", err)
	}
	logger := baseLogger.Named("api")

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		_ = baseLogger.Sync()
		return nil, fmt.Errorf("initialise secret fetcher: %w", err)
	}

	cfg, err := config.Load(ctx,
		config.WithEnvFile(envFile),
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		_ = fetcher.Close()
		_ = baseLogger.Sync()
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("missing required secrets: %s", strings.Join(missing.RedactedNames(), ", "))
		}
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	return &runtime{
		env:     envValues,
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		started: started,
	}, nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if err := rt.fetcher.Close(); err != nil {
		rt.logger.Warn("secret fetcher close error", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

// backend is the opened persistence layer. firestore is set only for the
// Firestore driver and backs the idempotency store as well.
type backend struct {
	registry  repositories.Registry
	firestore *firestore.Client
}

func openBackend(ctx context.Context, rt *runtime) (*backend, error) {
	cfg := rt.cfg
	checks := dependencyChecks(rt)

	switch cfg.Database.Driver {
	case config.DriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		client, err := provider.Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialise firestore client: %w", err)
		}
		reg, err := firestoreRepo.NewRegistry(provider, checks...)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, fmt.Errorf("build firestore repositories: %w", err)
		}
		return &backend{registry: reg, firestore: client}, nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		reg, err := postgres.NewRegistry(db, checks...)
		if err != nil {
			return nil, fmt.Errorf("build postgres repositories: %w", err)
		}
		return &backend{registry: reg}, nil
	case config.DriverMemory:
		rt.logger.Warn("using in-memory persistence; data is lost on restart")
		return &backend{registry: memory.NewRegistry()}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// dependencyChecks lists readiness probes that do not belong to the persistence backend.
func dependencyChecks(rt *runtime) []repositories.DependencyCheck {
	if rt.fetcher == nil || strings.TrimSpace(rt.env["API_SECRET_DEFAULT_PROJECT_ID"]) == "" {
		return nil
	}
	fetcher := rt.fetcher
	return []repositories.DependencyCheck{{
		Name:    "secretManager",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := fetcher.ResolveSecret(ctx, secretHealthReference)
			if err == nil {
				fetcher.Invalidate(secretHealthReference)
				return nil
			}
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		},
	}}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames makes the integration key mandatory outside local runs
// and the Postgres DSN mandatory when that driver is selected.
func requiredSecretNames(env map[string]string) []string {
	var names []string
	environment := strings.ToLower(strings.TrimSpace(env["API_SECURITY_ENVIRONMENT"]))
	if environment != "" && environment != "local" {
		names = append(names, "Integration.APIKey")
	}
	if strings.EqualFold(strings.TrimSpace(env["API_DATABASE_DRIVER"]), config.DriverPostgres) {
		names = append(names, "Database.PostgresDSN")
	}
	return names
}
