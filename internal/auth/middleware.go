package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/promptops/prompt-gateway/internal/db"
	"github.com/promptops/prompt-gateway/internal/models"
)

type contextKey string

const credentialContextKey contextKey = "credential"

// CredentialResolver looks an opaque API key up in the credential store.
type CredentialResolver interface {
	GetCredentialByKey(ctx context.Context, apiKey string) (*models.Credential, error)
}

type Middleware struct {
	resolver  CredentialResolver
	jwtSecret string
}

func NewMiddleware(resolver CredentialResolver, jwtSecret string) *Middleware {
	return &Middleware{resolver: resolver, jwtSecret: jwtSecret}
}

// Authenticate accepts either a raw API key in X-API-Key or a bearer token
// from /auth/token. Both paths end in a fresh credential-store lookup so
// revocation takes effect immediately.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "MISSING_CREDENTIAL", "missing X-API-Key or Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeAuthError(w, http.StatusUnauthorized, "MISSING_CREDENTIAL", "malformed Authorization header")
				return
			}

			claims, err := ValidateToken(parts[1], m.jwtSecret)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, "INVALID_CREDENTIAL", "invalid token")
				return
			}
			apiKey = claims.APIKey
		}

		cred, err := m.resolver.GetCredentialByKey(r.Context(), apiKey)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeAuthError(w, http.StatusForbidden, "INVALID_CREDENTIAL", "unknown API key")
				return
			}
			writeAuthError(w, http.StatusForbidden, "INVALID_CREDENTIAL", "credential lookup failed")
			return
		}

		if cred.Revoked {
			writeAuthError(w, http.StatusForbidden, "INVALID_CREDENTIAL", "API key has been revoked")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithCredential(r.Context(), cred)))
	})
}

// ContextWithCredential attaches a resolved credential to the context.
func ContextWithCredential(ctx context.Context, cred *models.Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey, cred)
}

func CredentialFromContext(ctx context.Context) (*models.Credential, bool) {
	cred, ok := ctx.Value(credentialContextKey).(*models.Credential)
	return cred, ok
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}
