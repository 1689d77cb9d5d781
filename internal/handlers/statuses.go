package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/printhouse/orders-api/internal/platform/httpx"
	"github.com/printhouse/orders-api/internal/platform/requestctx"
	"github.com/printhouse/orders-api/internal/services"
)

// StatusHandlers serves the read-only status catalog to any signed-in user.
type StatusHandlers struct {
	catalog services.StatusCatalog
}

// NewStatusHandlers constructs StatusHandlers.
func NewStatusHandlers(catalog services.StatusCatalog) *StatusHandlers {
	return &StatusHandlers{catalog: catalog}
}

// Routes registers the /statuses endpoints.
func (h *StatusHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listStatuses)
	r.Get("/{statusID}", h.getStatus)
}

type statusPayload struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Rank        int    `json:"rank"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type statusListResponse struct {
	Items []statusPayload `json:"items"`
}

func buildStatusPayload(status services.Status) statusPayload {
	return statusPayload{
		ID:          status.ID,
		Name:        status.Name,
		Description: status.Description,
		Color:       status.Color,
		Rank:        status.Rank,
		Active:      status.Active,
		CreatedAt:   formatTime(status.CreatedAt),
		UpdatedAt:   formatTime(status.UpdatedAt),
	}
}

// listStatuses returns active statuses unless ?include_inactive=true.
func (h *StatusHandlers) listStatuses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "status")
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	activeOnly := true
	if raw := strings.TrimSpace(r.URL.Query().Get("include_inactive")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "include_inactive must be a boolean", http.StatusBadRequest))
			return
		}
		activeOnly = !include
	}

	statuses, err := h.catalog.List(ctx, activeOnly)
	if err != nil {
		writeStatusError(ctx, w, err)
		return
	}
	items := make([]statusPayload, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, buildStatusPayload(status))
	}
	writeJSONResponse(w, http.StatusOK, statusListResponse{Items: items})
}

func (h *StatusHandlers) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "status")
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	statusID, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "statusID")))
	if err != nil || statusID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status id must be a positive integer", http.StatusBadRequest))
		return
	}
	status, err := h.catalog.Get(ctx, statusID)
	if err != nil {
		writeStatusError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildStatusPayload(status))
}

func writeStatusError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrStatusNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("status_not_found", "status not found", http.StatusNotFound))
	case errors.Is(err, services.ErrStatusInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		requestctx.Logger(ctx).Error("status catalog request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("status_error", "failed to load status catalog", http.StatusInternalServerError))
	}
}
