package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/platform/httpx"
	"github.com/printhouse/orders-api/internal/platform/requestctx"
	"github.com/printhouse/orders-api/internal/services"
)

const maxEndpointBodySize = 8 * 1024

// WebhookHandlers administers the endpoints notified on status changes.
type WebhookHandlers struct {
	endpoints services.WebhookEndpointService
}

// NewWebhookHandlers constructs WebhookHandlers.
func NewWebhookHandlers(endpoints services.WebhookEndpointService) *WebhookHandlers {
	return &WebhookHandlers{endpoints: endpoints}
}

// Routes registers the /webhooks endpoints behind the webhooks.manage capability.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireCapability(auth.CapWebhooksManage))
	r.Get("/", h.listEndpoints)
	r.Post("/", h.createEndpoint)
	r.Get("/{endpointID}", h.getEndpoint)
	r.Put("/{endpointID}", h.updateEndpoint)
	r.Delete("/{endpointID}", h.deleteEndpoint)
}

type endpointPayload struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Description      string `json:"description,omitempty"`
	Active           bool   `json:"active"`
	HasSigningSecret bool   `json:"has_signing_secret"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

type endpointListResponse struct {
	Items []endpointPayload `json:"items"`
}

type createEndpointRequest struct {
	URL           string `json:"url"`
	Description   string `json:"description"`
	Active        *bool  `json:"active"`
	SigningSecret string `json:"signing_secret"`
}

type updateEndpointRequest struct {
	URL           *string `json:"url"`
	Description   *string `json:"description"`
	Active        *bool   `json:"active"`
	SigningSecret *string `json:"signing_secret"`
}

// Signing secrets are write-only.
func buildEndpointPayload(endpoint services.NotificationEndpoint) endpointPayload {
	return endpointPayload{
		ID:               endpoint.ID,
		URL:              endpoint.URL,
		Description:      endpoint.Description,
		Active:           endpoint.Active,
		HasSigningSecret: endpoint.SigningSecret != "",
		CreatedAt:        formatTime(endpoint.CreatedAt),
		UpdatedAt:        formatTime(endpoint.UpdatedAt),
	}
}

func (h *WebhookHandlers) listEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.endpoints == nil {
		serviceUnavailable(ctx, w, "webhook")
		return
	}
	endpoints, err := h.endpoints.List(ctx)
	if err != nil {
		writeEndpointError(ctx, w, err)
		return
	}
	items := make([]endpointPayload, 0, len(endpoints))
	for _, endpoint := range endpoints {
		items = append(items, buildEndpointPayload(endpoint))
	}
	writeJSONResponse(w, http.StatusOK, endpointListResponse{Items: items})
}

func (h *WebhookHandlers) createEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.endpoints == nil {
		serviceUnavailable(ctx, w, "webhook")
		return
	}
	var req createEndpointRequest
	if !decodeBody(w, r, maxEndpointBodySize, &req) {
		return
	}
	endpoint, err := h.endpoints.Create(ctx, services.CreateEndpointCommand{
		URL:           strings.TrimSpace(req.URL),
		Description:   strings.TrimSpace(req.Description),
		Active:        req.Active,
		SigningSecret: req.SigningSecret,
	})
	if err != nil {
		writeEndpointError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildEndpointPayload(endpoint))
}

func (h *WebhookHandlers) getEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.endpoints == nil {
		serviceUnavailable(ctx, w, "webhook")
		return
	}
	endpoint, err := h.endpoints.Get(ctx, strings.TrimSpace(chi.URLParam(r, "endpointID")))
	if err != nil {
		writeEndpointError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildEndpointPayload(endpoint))
}

func (h *WebhookHandlers) updateEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.endpoints == nil {
		serviceUnavailable(ctx, w, "webhook")
		return
	}
	var req updateEndpointRequest
	if !decodeBody(w, r, maxEndpointBodySize, &req) {
		return
	}
	endpoint, err := h.endpoints.Update(ctx, services.UpdateEndpointCommand{
		EndpointID:    strings.TrimSpace(chi.URLParam(r, "endpointID")),
		URL:           req.URL,
		Description:   req.Description,
		Active:        req.Active,
		SigningSecret: req.SigningSecret,
	})
	if err != nil {
		writeEndpointError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildEndpointPayload(endpoint))
}

func (h *WebhookHandlers) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.endpoints == nil {
		serviceUnavailable(ctx, w, "webhook")
		return
	}
	if err := h.endpoints.Delete(ctx, strings.TrimSpace(chi.URLParam(r, "endpointID"))); err != nil {
		writeEndpointError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeEndpointError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrEndpointNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("endpoint_not_found", "webhook endpoint not found", http.StatusNotFound))
	case errors.Is(err, services.ErrEndpointInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		requestctx.Logger(ctx).Error("webhook endpoint request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook endpoint request", http.StatusInternalServerError))
	}
}
