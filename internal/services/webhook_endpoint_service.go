package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/printhouse/orders-api/internal/repositories"
)

const (
	endpointIDPrefix          = "whk_"
	maxEndpointDescriptionLen = 255
)

// WebhookEndpointServiceDeps bundles collaborators required to construct the endpoint service.
type WebhookEndpointServiceDeps struct {
	Endpoints   repositories.EndpointRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type webhookEndpointService struct {
	endpoints repositories.EndpointRepository
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewWebhookEndpointService wires the endpoint repository into a WebhookEndpointService.
func NewWebhookEndpointService(deps WebhookEndpointServiceDeps) (WebhookEndpointService, error) {
	if deps.Endpoints == nil {
		return nil, errors.New("webhook endpoint service: endpoint repository is required")
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
	return &webhookEndpointService{
		endpoints: deps.Endpoints,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *webhookEndpointService) List(ctx context.Context) ([]NotificationEndpoint, error) {
	endpoints, err := s.endpoints.List(ctx, false)
	if err != nil {
		return nil, s.mapError(err)
	}
	return endpoints, nil
}

func (s *webhookEndpointService) Get(ctx context.Context, endpointID string) (NotificationEndpoint, error) {
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return NotificationEndpoint{}, fmt.Errorf("%w: endpoint id is required", ErrEndpointInvalidInput)
	}
	endpoint, err := s.endpoints.FindByID(ctx, endpointID)
	if err != nil {
		return NotificationEndpoint{}, s.mapError(err)
	}
	return endpoint, nil
}

func (s *webhookEndpointService) Create(ctx context.Context, cmd CreateEndpointCommand) (NotificationEndpoint, error) {
	rawURL, err := validateEndpointURL(cmd.URL)
	if err != nil {
		return NotificationEndpoint{}, err
	}
	description := strings.TrimSpace(cmd.Description)
	if len(description) > maxEndpointDescriptionLen {
		return NotificationEndpoint{}, fmt.Errorf("%w: description exceeds %d characters", ErrEndpointInvalidInput, maxEndpointDescriptionLen)
	}
	active := true
	if cmd.Active != nil {
		active = *cmd.Active
	}
	now := s.clock()
	endpoint := NotificationEndpoint{
		ID:            endpointIDPrefix + s.newID(),
		URL:           rawURL,
		Description:   description,
		Active:        active,
		SigningSecret: strings.TrimSpace(cmd.SigningSecret),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.endpoints.Insert(ctx, endpoint); err != nil {
		return NotificationEndpoint{}, s.mapError(err)
	}
	s.logger(ctx, "webhook.endpoint.created", map[string]any{
		"endpointId": endpoint.ID,
		"url":        endpoint.URL,
		"active":     endpoint.Active,
	})
	return endpoint, nil
}

func (s *webhookEndpointService) Update(ctx context.Context, cmd UpdateEndpointCommand) (NotificationEndpoint, error) {
	endpoint, err := s.Get(ctx, cmd.EndpointID)
	if err != nil {
		return NotificationEndpoint{}, err
	}
	if cmd.URL != nil {
		rawURL, err := validateEndpointURL(*cmd.URL)
		if err != nil {
			return NotificationEndpoint{}, err
		}
		endpoint.URL = rawURL
	}
	if cmd.Description != nil {
		description := strings.TrimSpace(*cmd.Description)
		if len(description) > maxEndpointDescriptionLen {
			return NotificationEndpoint{}, fmt.Errorf("%w: description exceeds %d characters", ErrEndpointInvalidInput, maxEndpointDescriptionLen)
		}
		endpoint.Description = description
	}
	if cmd.Active != nil {
		endpoint.Active = *cmd.Active
	}
	if cmd.SigningSecret != nil {
		endpoint.SigningSecret = strings.TrimSpace(*cmd.SigningSecret)
	}
	endpoint.UpdatedAt = s.clock()
	if err := s.endpoints.Update(ctx, endpoint); err != nil {
		return NotificationEndpoint{}, s.mapError(err)
	}
	return endpoint, nil
}

func (s *webhookEndpointService) Delete(ctx context.Context, endpointID string) error {
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return fmt.Errorf("%w: endpoint id is required", ErrEndpointInvalidInput)
	}
	if err := s.endpoints.Delete(ctx, endpointID); err != nil {
		return s.mapError(err)
	}
	s.logger(ctx, "webhook.endpoint.deleted", map[string]any{"endpointId": endpointID})
	return nil
}

func (s *webhookEndpointService) mapError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrEndpointNotFound, err)
	case isRepoConflict(err):
		return fmt.Errorf("%w: %v", ErrEndpointInvalidInput, err)
	}
	return fmt.Errorf("webhook endpoint repository error: %w", err)
}

func validateEndpointURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrEndpointInvalidInput)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: url: %v", ErrEndpointInvalidInput, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: url must be absolute http(s)", ErrEndpointInvalidInput)
	}
	return parsed.String(), nil
}
