package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
)

type contextKey string

const principalKey contextKey = "auth.principal"

// Principal identifies the authenticated caller of an org-scoped endpoint.
type Principal struct {
	OrgID    string
	KeyID    string
	KeyLabel string
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithPrincipal attaches a principal to the context. Used by tests and by
// internal callers that bypass the HTTP middleware.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func denyUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// CronAuth guards scheduler-only endpoints with a shared secret.
func CronAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				denyUnauthorized(w, "cron endpoint is not configured")
				return
			}
			token := bearerToken(r)
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				denyUnauthorized(w, "invalid cron token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OrgAuth resolves the bearer token to an organization-scoped API key and
// stores the principal in the request context.
func OrgAuth(keys repositories.APIKeyRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				denyUnauthorized(w, "missing bearer token")
				return
			}

			hash := sha256.Sum256([]byte(token))
			key, err := keys.GetByTokenHash(r.Context(), hex.EncodeToString(hash[:]))
			if err != nil {
				denyUnauthorized(w, "invalid api key")
				return
			}

			principal := Principal{OrgID: key.OrgID, KeyID: key.ID, KeyLabel: key.Label}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, principal)))
		})
	}
}
