// Package auth provides the HTTP session context: bearer-token
// authentication, the request-scoped user, and the route guards.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/config"
	"github.com/linkaid/platform/internal/shared/types"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// User represents the authenticated user for the current request.
// Role is the resolver's answer, not the token snapshot.
type User struct {
	ID        types.ID          `json:"sub"`
	FullName  string            `json:"full_name"`
	Role      platformauth.Role `json:"role"`
	CompanyID types.ID          `json:"company_id,omitempty"`
	Verified  bool              `json:"verified"`
	SessionID string            `json:"session_id"`
}

// RoleResolver resolves the current role for a signed-in identity.
// Implemented by identity.Resolver.
type RoleResolver interface {
	Resolve(ctx context.Context, userID types.ID) (platformauth.Role, error)
}

// Middleware authenticates the bearer token if one is present and puts
// the user into the request context. It does not reject requests: the
// route guards decide what an unauthenticated or under-privileged
// request is allowed to do.
func Middleware(cfg config.AuthConfig, resolver RoleResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := platformauth.ParseToken(cfg, tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user := &User{
				ID:        types.ID(claims.Subject),
				FullName:  claims.FullName,
				Role:      platformauth.Role(claims.Role),
				CompanyID: types.ID(claims.CompanyID),
				Verified:  claims.Verified,
				SessionID: claims.SessionID,
			}

			// Re-resolve the role from the profile store so that an
			// admin role change takes effect without re-login. A
			// resolver miss leaves the user authenticated but roleless,
			// which the guards route to sign-in.
			if resolver != nil {
				role, err := resolver.Resolve(r.Context(), user.ID)
				if err != nil {
					user.Role = ""
				} else {
					user.Role = role
				}
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns a context carrying the given user. Used by tests
// and by internal callers that act on behalf of a user.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// RequirePermission creates middleware that requires a specific
// permission on the resolved role.
func RequirePermission(perm platformauth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !platformauth.HasPermission(user.Role, perm) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HasRole checks if the user has the given role
func (u *User) HasRole(role platformauth.Role) bool {
	return u.Role == role
}

// IsSuperAdmin checks if the user is a super admin
func (u *User) IsSuperAdmin() bool {
	return u.Role == platformauth.RoleSuperAdmin
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
