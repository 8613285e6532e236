package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brightclass/keygate/internal/model"
	"github.com/brightclass/keygate/internal/secret"
	"github.com/brightclass/keygate/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// DefaultAPIKeyHeader is the dedicated credential header when none is
// configured.
const DefaultAPIKeyHeader = "X-API-Key"

// ExtractCredentials reads credential material from the request headers. An
// API key may arrive in the dedicated header or as a Bearer value matching
// the key wire format; any other Bearer value is treated as an opaque
// session token.
func ExtractCredentials(r *http.Request, apiKeyHeader string) service.Credentials {
	if apiKeyHeader == "" {
		apiKeyHeader = DefaultAPIKeyHeader
	}
	creds := service.Credentials{APIKey: r.Header.Get(apiKeyHeader)}

	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && bearer != "" {
		if strings.HasPrefix(bearer, secret.KeyPrefix) {
			if creds.APIKey == "" {
				creds.APIKey = bearer
			}
		} else {
			creds.SessionToken = bearer
		}
	}
	return creds
}

// Gate returns an HTTP middleware that runs the authorization decision
// function ahead of the wrapped routes. On allow, the resolved principal
// (nil for anonymous public access) is attached to the request context. On
// deny, the denial reason is written as a stable machine-readable error
// code; internal failures fail closed with a generic 500.
func Gate(authSvc *service.AuthService, apiKeyHeader string, req service.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := ExtractCredentials(r, apiKeyHeader)

			decision, err := authSvc.Authorize(r.Context(), creds, r.Method, r.URL.Path, req)
			if err != nil {
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
				return
			}
			if !decision.Allowed {
				status, message := denialResponse(decision.Reason)
				writeAuthError(w, status, string(decision.Reason), message)
				return
			}

			ctx := r.Context()
			if decision.Principal != nil {
				ctx = context.WithValue(ctx, AuthPrincipalKey, decision.Principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate is Gate with no scope/tier/credit requirements: it only
// resolves an identity (or public access).
func Authenticate(authSvc *service.AuthService, apiKeyHeader string) func(http.Handler) http.Handler {
	return Gate(authSvc, apiKeyHeader, service.Requirement{})
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil for anonymous (public route) requests.
func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*model.Principal); ok {
		return p
	}
	return nil
}

func denialResponse(reason service.DenyReason) (int, string) {
	switch reason {
	case service.DenyAuthRequired:
		return http.StatusUnauthorized, "Authentication required. Provide a session token or API key."
	case service.DenyInvalidToken:
		return http.StatusUnauthorized, "Invalid or expired session token"
	case service.DenyInvalidKey:
		return http.StatusUnauthorized, "Invalid or revoked API key"
	case service.DenyInsufficientScope:
		return http.StatusForbidden, "This route requires a full-scope API key"
	case service.DenyInsufficientTier:
		return http.StatusForbidden, "This route is not available on your subscription tier"
	case service.DenyCreditsExhausted:
		return http.StatusTooManyRequests, "Credit balance exhausted"
	default:
		return http.StatusUnauthorized, "Request denied"
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Status: status, Code: code, Message: message},
	})
}
