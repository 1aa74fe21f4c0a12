package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tabletap/api/internal/auth"
	"github.com/tabletap/api/internal/enum"
)

type contextKey string

const claimsKey contextKey = "claims"

// CanAccess is the single authorization policy for staff routes: the caller
// must hold one of the allowed roles, and the role must be scoped to the
// tenant in the path. Universal admins carry a nil tenant id and pass the
// tenant check for every tenant.
func CanAccess(claims *auth.Claims, tenantID uuid.UUID, allowedRoles ...string) bool {
	if claims == nil {
		return false
	}
	if claims.Role == enum.RoleUniversalAdmin {
		return true
	}
	if claims.TenantID != tenantID {
		return false
	}
	for _, role := range allowedRoles {
		if claims.Role == role {
			return true
		}
	}
	return false
}

func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, parts[1])
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenantRole authorizes a tenant-scoped route through CanAccess,
// reading the tenant id from the {tid} path segment.
func RequireTenantRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			tidStr := r.PathValue("tid")
			if tidStr == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tenant ID"})
				return
			}

			tid, err := uuid.Parse(tidStr)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
				return
			}

			if !CanAccess(claims, tid, roles...) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this tenant"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUniversalAdmin guards the cross-tenant management routes.
func RequireUniversalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}

		if claims.Role != enum.RoleUniversalAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// WithClaims returns a context carrying claims. Used by handler tests that
// bypass the Authenticate middleware.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
