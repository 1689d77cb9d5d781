package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKeyHeader carries the storefront integration key.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey admits requests whose X-API-Key matches key and attaches an
// integration identity. An empty key rejects every request.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(key))
	configured := strings.TrimSpace(key) != ""
	clientID := "integration:" + hex.EncodeToString(expected[:4])

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !configured {
				respondAuthError(r.Context(), w, http.StatusServiceUnavailable, "integration_disabled", "integration api key not configured")
				return
			}
			provided := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if provided == "" {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "api key missing")
				return
			}
			got := sha256.Sum256([]byte(provided))
			if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "invalid_api_key", "api key invalid")
				return
			}
			identity := &Identity{UID: clientID, Roles: []Role{RoleIntegration}}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
