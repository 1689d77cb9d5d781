package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/printhouse/orders-api/internal/platform/auth"
	"github.com/printhouse/orders-api/internal/services"
)

func TestStatusHandlersList(t *testing.T) {
	var activeOnly []bool
	catalog := &stubStatusCatalog{
		listFn: func(_ context.Context, active bool) ([]services.Status, error) {
			activeOnly = append(activeOnly, active)
			return []services.Status{{ID: 1, Name: "Aberto", Rank: 1, Active: true}}, nil
		},
	}
	router := newTestRouter(asIdentity("visitor-1", auth.RoleVisitor), NewStatusHandlers(catalog).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	items, _ := decodeBodyMap(t, rr)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one status, got %v", items)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?include_inactive=true", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(activeOnly) != 2 || !activeOnly[0] || activeOnly[1] {
		t.Fatalf("unexpected activeOnly flags %v", activeOnly)
	}
}

func TestStatusHandlersGet(t *testing.T) {
	catalog := &stubStatusCatalog{
		getFn: func(_ context.Context, id int) (services.Status, error) {
			if id != 3 {
				return services.Status{}, services.ErrStatusNotFound
			}
			return services.Status{ID: 3, Name: "Concluído", Active: true}, nil
		},
	}
	router := newTestRouter(asIdentity("visitor-1", auth.RoleVisitor), NewStatusHandlers(catalog).Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/3", nil))
	if rr.Code != http.StatusOK || decodeBodyMap(t, rr)["name"] != "Concluído" {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/9", nil))
	assertErrorCode(t, rr, http.StatusNotFound, "status_not_found")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/abc", nil))
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")
}

func TestStatusHandlersRequireIdentity(t *testing.T) {
	router := newTestRouter(nil, NewStatusHandlers(&stubStatusCatalog{}).Routes)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assertErrorCode(t, rr, http.StatusUnauthorized, "unauthenticated")
}
