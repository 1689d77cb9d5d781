package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 60 * time.Second
	defaultDatabaseDriver       = DriverFirestore
	defaultMaxOpenConns         = 10
	defaultMaxIdleConns         = 5
	defaultConnMaxLifetime      = 30 * time.Minute
	defaultReportLinkTTL        = 15 * time.Minute
	defaultOrderEventsTopic     = "order-events"
	defaultWebhookTimeout       = 10 * time.Second
	defaultBreakerFailures      = 5
	defaultBreakerOpenFor       = 30 * time.Second
	defaultSignatureHeader      = "X-Signature"
	defaultTimestampHeader      = "X-Signature-Timestamp"
	defaultBulkConcurrency      = 1
	defaultBulkMaxOrders        = 500
	defaultIntegrationPerMinute = 120
	defaultIntegrationBurst     = 20
	defaultIntegrationCallLog   = 1000
	defaultSequencing           = SequencingPersistThenNotify
	defaultCancelStatusID       = 4
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultSecurityIAPIssuer    = "https://cloud.google.com/iap"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Supported persistence backends.
const (
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"
)

// Supported sequencings for single-order status changes.
const (
	SequencingPersistThenNotify = "persist_then_notify"
	SequencingNotifyThenPersist = "notify_then_persist"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Database    DatabaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	PubSub      PubSubConfig
	Webhooks    WebhookConfig
	Bulk        BulkConfig
	Integration IntegrationConfig
	Workflow    WorkflowConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings used to verify staff tokens.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver          string
	PostgresDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// FirestoreConfig stores document database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig lists bucket names used by the application.
type StorageConfig struct {
	ExportsBucket string
	// SignerKeyFile is a service account JSON key used to sign report download
	// links. Without it archived reports are referenced by gs:// path.
	SignerKeyFile string
	ReportLinkTTL time.Duration
}

// PubSubConfig configures order event publication. An empty topic disables it.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
	EmulatorHost     string
}

// WebhookConfig controls outbound status notifications.
type WebhookConfig struct {
	Timeout         time.Duration
	BreakerEnabled  bool
	BreakerFailures int
	BreakerOpenFor  time.Duration
	SignatureHeader string
	TimestampHeader string
}

// BulkConfig controls bulk status changes.
type BulkConfig struct {
	Concurrency    int
	MaxOrders      int
	ArchiveReports bool
}

// IntegrationConfig configures the storefront integration API.
type IntegrationConfig struct {
	APIKey         string
	RatePerMinute  int
	Burst          int
	CallLogEntries int
}

// WorkflowConfig tunes the status workflow.
type WorkflowConfig struct {
	Sequencing       string
	EnforceAdjacency bool
	Transitions      map[int][]int
	CancelStatusID   int
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification for internal callers.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that win over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Integration.APIKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration from defaults, the .env file, the
// process environment, explicit maps and Secret Manager references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := newLookup(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(stringWithDefault(lookup, "API_DATABASE_DRIVER", defaultDatabaseDriver)),
			PostgresDSN:     stringWithDefault(lookup, "API_DATABASE_POSTGRES_DSN", ""),
			MaxOpenConns:    intWithDefault(lookup, "API_DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
			MaxIdleConns:    intWithDefault(lookup, "API_DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
			ConnMaxLifetime: durationWithDefault(lookup, "API_DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			ExportsBucket: stringWithDefault(lookup, "API_STORAGE_EXPORTS_BUCKET", ""),
			SignerKeyFile: stringWithDefault(lookup, "API_STORAGE_SIGNER_KEY_FILE", ""),
			ReportLinkTTL: durationWithDefault(lookup, "API_STORAGE_REPORT_LINK_TTL", defaultReportLinkTTL),
		},
		PubSub: PubSubConfig{
			ProjectID:        stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: stringWithDefault(lookup, "API_PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderEventsTopic),
			EmulatorHost:     stringWithDefault(lookup, "API_PUBSUB_EMULATOR_HOST", ""),
		},
		Webhooks: WebhookConfig{
			Timeout:         durationWithDefault(lookup, "API_WEBHOOK_TIMEOUT", defaultWebhookTimeout),
			BreakerEnabled:  boolWithDefault(lookup, "API_WEBHOOK_BREAKER_ENABLED", false),
			BreakerFailures: intWithDefault(lookup, "API_WEBHOOK_BREAKER_FAILURES", defaultBreakerFailures),
			BreakerOpenFor:  durationWithDefault(lookup, "API_WEBHOOK_BREAKER_OPEN_FOR", defaultBreakerOpenFor),
			SignatureHeader: stringWithDefault(lookup, "API_WEBHOOK_SIGNATURE_HEADER", defaultSignatureHeader),
			TimestampHeader: stringWithDefault(lookup, "API_WEBHOOK_TIMESTAMP_HEADER", defaultTimestampHeader),
		},
		Bulk: BulkConfig{
			Concurrency:    intWithDefault(lookup, "API_BULK_CONCURRENCY", defaultBulkConcurrency),
			MaxOrders:      intWithDefault(lookup, "API_BULK_MAX_ORDERS", defaultBulkMaxOrders),
			ArchiveReports: boolWithDefault(lookup, "API_BULK_ARCHIVE_REPORTS", false),
		},
		Integration: IntegrationConfig{
			APIKey:         stringWithDefault(lookup, "API_INTEGRATION_API_KEY", ""),
			RatePerMinute:  intWithDefault(lookup, "API_INTEGRATION_RATE_PER_MIN", defaultIntegrationPerMinute),
			Burst:          intWithDefault(lookup, "API_INTEGRATION_BURST", defaultIntegrationBurst),
			CallLogEntries: intWithDefault(lookup, "API_INTEGRATION_CALL_LOG_ENTRIES", defaultIntegrationCallLog),
		},
		Workflow: WorkflowConfig{
			Sequencing:       strings.ToLower(stringWithDefault(lookup, "API_WORKFLOW_SEQUENCING", defaultSequencing)),
			EnforceAdjacency: boolWithDefault(lookup, "API_WORKFLOW_ENFORCE_ADJACENCY", false),
			CancelStatusID:   intWithDefault(lookup, "API_WORKFLOW_CANCEL_STATUS_ID", defaultCancelStatusID),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:   stringWithDefault(lookup, "API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  stringWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCE", ""),
				Audiences: mapWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCES"),
				Issuers:   csvWithDefault(lookup, "API_SECURITY_OIDC_ISSUERS"),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	var invalid []string
	transitions, err := parseTransitions(stringWithDefault(lookup, "API_WORKFLOW_TRANSITIONS", ""))
	if err != nil {
		invalid = append(invalid, "Workflow.Transitions")
	}
	cfg.Workflow.Transitions = transitions

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer, defaultSecurityIAPIssuer}
	}
	if cfg.Security.OIDC.Audience == "" {
		if audience, ok := cfg.Security.OIDC.Audiences[cfg.Security.Environment]; ok {
			cfg.Security.OIDC.Audience = audience
		}
	}

	resolved, err := resolveSecretFields(ctx, options.secret, map[string]*string{
		"Database.PostgresDSN": &cfg.Database.PostgresDSN,
		"Integration.APIKey":   &cfg.Integration.APIKey,
	})
	if err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	switch cfg.Database.Driver {
	case DriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.Database.PostgresDSN) == "" {
			missing = append(missing, "Database.PostgresDSN")
		}
	case DriverMemory:
	default:
		missing = append(missing, "Database.Driver")
	}
	if cfg.Webhooks.Timeout <= 0 {
		missing = append(missing, "Webhooks.Timeout")
	}
	if cfg.Bulk.Concurrency <= 0 {
		missing = append(missing, "Bulk.Concurrency")
	}
	if cfg.Bulk.MaxOrders <= 0 {
		missing = append(missing, "Bulk.MaxOrders")
	}
	if cfg.Bulk.ArchiveReports && cfg.Storage.ExportsBucket == "" {
		missing = append(missing, "Storage.ExportsBucket")
	}
	if cfg.Integration.CallLogEntries <= 0 {
		missing = append(missing, "Integration.CallLogEntries")
	}
	switch cfg.Workflow.Sequencing {
	case SequencingPersistThenNotify, SequencingNotifyThenPersist:
	default:
		missing = append(missing, "Workflow.Sequencing")
	}
	if cfg.Workflow.EnforceAdjacency && len(cfg.Workflow.Transitions) == 0 {
		missing = append(missing, "Workflow.Transitions")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// parseTransitions reads "1=2|4,2=3|4" into an adjacency table.
func parseTransitions(raw string) (map[int][]int, error) {
	table := make(map[int][]int)
	if strings.TrimSpace(raw) == "" {
		return table, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		from, to, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("config: transition %q missing '='", entry)
		}
		source, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("config: transition source %q: %w", from, err)
		}
		for _, target := range strings.Split(to, "|") {
			target = strings.TrimSpace(target)
			if target == "" {
				continue
			}
			id, err := strconv.Atoi(target)
			if err != nil {
				return nil, fmt.Errorf("config: transition target %q: %w", target, err)
			}
			table[source] = append(table[source], id)
		}
		sort.Ints(table[source])
	}
	return table, nil
}
