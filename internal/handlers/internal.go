package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/services"
)

// InternalHandlers serves scheduler and service-to-service endpoints. The OIDC
// check lives in the group middleware.
type InternalHandlers struct {
	bulk services.BulkTransitionRunner
}

// NewInternalHandlers constructs InternalHandlers.
func NewInternalHandlers(bulk services.BulkTransitionRunner) *InternalHandlers {
	return &InternalHandlers{bulk: bulk}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(auth.RequireCapability(auth.CapOrdersChangeStatus)).Post("/orders:bulk-status", h.bulkTransition)
}

func (h *InternalHandlers) bulkTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bulk == nil {
		serviceUnavailable(ctx, w, "bulk_transition")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	runBulkTransition(w, r, h.bulk, actorFromIdentity(identity))
}
