// Package secrets resolves secret:// references against Google Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	metricNamespace     = "github.com/printhouse/orders-api/internal/platform/secrets"
	refScheme           = "secret://"
)

// ErrInvalidReference is returned for references that are not secret://name[@version].
var ErrInvalidReference = errors.New("secrets: invalid reference")

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves references with an in-process cache. When Secret Manager is
// unreachable or denies access, values from a local dotenv-style fallback file
// (NAME=value) are used instead; a NotFound answer never falls back.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string

	mu    sync.RWMutex
	cache map[string]string

	latency metric.Float64Histogram
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithDefaultProject sets the project that owns short secret names.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.projectID = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the local fallback file path.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

// WithMeter records resolution latency on the supplied meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

// WithSecretManagerClient injects a client, mainly for tests.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// WithClientOptions passes options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

// NewFetcher builds a Fetcher. Failing to create a Secret Manager client is not
// fatal: the fetcher then serves the fallback file only.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{fallbackPath: defaultFallbackPath}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	f := &Fetcher{
		client:       cfg.client,
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
	}
	if f.client == nil {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			f.logger.Warn("secrets: secret manager client unavailable, using fallback file only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	latency, err := cfg.meter.Float64Histogram("secrets.resolve.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret resolution"))
	if err != nil {
		return nil, fmt.Errorf("secrets: create latency histogram: %w", err)
	}
	f.latency = latency
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f == nil || !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, version, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	key := name + "@" + version

	f.mu.RLock()
	value, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return value, nil
	}

	start := time.Now()
	value, source, err := f.fetch(ctx, name, version)
	f.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("source", source), attribute.Bool("error", err != nil)))
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
	return value, nil
}

// Invalidate drops a cached value so the next resolution goes to the backend.
func (f *Fetcher) Invalidate(ref string) {
	name, version, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, name+"@"+version)
	f.mu.Unlock()
}

func (f *Fetcher) fetch(ctx context.Context, name, version string) (string, string, error) {
	if f.client == nil {
		if value, ok := f.lookupFallback(name); ok {
			return value, "fallback", nil
		}
		return "", "fallback", fmt.Errorf("secrets: %s unavailable: no secret manager client and no fallback", name)
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: f.resourceName(name, version),
	})
	if err == nil {
		return string(resp.GetPayload().GetData()), "secret_manager", nil
	}
	if !fallbackEligible(err) {
		return "", "secret_manager", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	if value, ok := f.lookupFallback(name); ok {
		f.logger.Warn("secrets: using fallback value", zap.String("secret", name), zap.Error(err))
		return value, "fallback", nil
	}
	return "", "secret_manager", fmt.Errorf("secrets: access %s: %w", name, err)
}

func (f *Fetcher) resourceName(name, version string) string {
	if strings.HasPrefix(name, "projects/") {
		return name + "/versions/" + version
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version)
}

func (f *Fetcher) lookupFallback(name string) (string, bool) {
	f.fallbackOnce.Do(func() {
		if f.fallbackPath == "" {
			return
		}
		values, err := godotenv.Read(f.fallbackPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.logger.Warn("secrets: read fallback file", zap.String("path", f.fallbackPath), zap.Error(err))
			}
			return
		}
		f.fallback = values
	})
	value, ok := f.fallback[name]
	return value, ok
}

func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// parseReference splits secret://name[@version] into its parts. The version
// defaults to latest.
func parseReference(ref string) (string, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), refScheme)
	if !ok || rest == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	name, version, hasVersion := strings.Cut(rest, "@")
	name = strings.Trim(name, "/")
	if name == "" || (hasVersion && version == "") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	if !hasVersion {
		version = "latest"
	}
	return name, version, nil
}
