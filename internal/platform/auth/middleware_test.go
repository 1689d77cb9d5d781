package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return body.Error
}

func TestRequireFirebaseAuthAllowsValidToken(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID: "uid-123",
		Claims: map[string]any{
			"role":  []any{"gerente", "unknown"},
			"email": "ana@example.com",
		},
	}}
	authn := NewAuthenticator(verifier)

	called := false
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		if identity.UID != "uid-123" || identity.Email != "ana@example.com" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		if !identity.HasRole(RoleManager) || len(identity.Roles) != 1 {
			t.Fatalf("expected manager role via alias, got %v", identity.Roles)
		}
		if identity.Token() == nil {
			t.Fatalf("expected token on identity")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer token-abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !called || rr.Code != http.StatusNoContent {
		t.Fatalf("expected handler call, got status %d", rr.Code)
	}
	if verifier.received != "token-abc" {
		t.Fatalf("unexpected token passed to verifier: %s", verifier.received)
	}
}

func TestRequireFirebaseAuthRejections(t *testing.T) {
	cases := map[string]struct {
		verifier *stubTokenVerifier
		header   string
		opts     []Option
		status   int
		code     string
	}{
		"missing header": {
			verifier: &stubTokenVerifier{},
			status:   http.StatusUnauthorized,
			code:     "unauthenticated",
		},
		"expired": {
			verifier: &stubTokenVerifier{err: ErrTokenExpired},
			header:   "Bearer x",
			status:   http.StatusUnauthorized,
			code:     "token_expired",
		},
		"invalid": {
			verifier: &stubTokenVerifier{err: errors.New("bad signature")},
			header:   "Bearer x",
			status:   http.StatusUnauthorized,
			code:     "invalid_token",
		},
		"no roles": {
			verifier: &stubTokenVerifier{token: &firebaseauth.Token{UID: "u", Claims: map[string]any{"role": "integration"}}},
			header:   "Bearer x",
			status:   http.StatusForbidden,
			code:     "missing_role",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewAuthenticator(tc.verifier, tc.opts...).RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler must not run")
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if code := decodeErrorCode(t, rr); code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, code)
			}
		})
	}
}

func TestRequireFirebaseAuthFallbackRole(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "u", Claims: map[string]any{}}}
	handler := NewAuthenticator(verifier, WithFallbackRole(RoleVisitor)).RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		if !identity.HasRole(RoleVisitor) {
			t.Fatalf("expected fallback role, got %v", identity.Roles)
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer x")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireCapability(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	guard := RequireCapability(CapOrdersChangeStatus)(ok)

	cases := map[string]struct {
		identity *Identity
		status   int
	}{
		"anonymous": {status: http.StatusUnauthorized},
		"school":    {identity: &Identity{UID: "s", Roles: []Role{RoleSchool}}, status: http.StatusForbidden},
		"shipping":  {identity: &Identity{UID: "e", Roles: []Role{RoleShipping}}, status: http.StatusOK},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tc.identity != nil {
			req = req.WithContext(WithIdentity(req.Context(), tc.identity))
		}
		rr := httptest.NewRecorder()
		guard.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", name, tc.status, rr.Code)
		}
	}
}
