package auth

import (
	"net/http"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/metrics"
)

// Well-known guard redirect targets.
const (
	SignInPath       = "/signin"
	BannedPath       = "/banned"
	UnauthorizedPath = "/unauthorized"
)

// Decision is the outcome of evaluating a guard for a request.
type Decision struct {
	Allow    bool
	Redirect string
}

// GuardKind selects which screen class a route belongs to.
type GuardKind int

const (
	// GuardPublicOnly protects sign-in/sign-up screens: a signed-in
	// user with a resolvable role is sent to their role home instead.
	GuardPublicOnly GuardKind = iota
	// GuardAuthenticated requires any signed-in, non-banned user.
	GuardAuthenticated
	// GuardRoles requires one of an explicit allow-list of roles.
	GuardRoles
)

// Rule is one row of the route permission table.
type Rule struct {
	Kind  GuardKind
	Roles []platformauth.Role // allow-list, GuardRoles only
}

// Evaluate applies a rule to the session state. This is the single
// authorization decision point: the three guard middlewares below are
// thin wrappers that translate a Decision into an HTTP response.
func Evaluate(rule Rule, user *User) Decision {
	switch rule.Kind {
	case GuardPublicOnly:
		if user == nil {
			return Decision{Allow: true}
		}
		if !user.Role.Valid() {
			return Decision{Redirect: SignInPath}
		}
		return Decision{Redirect: platformauth.HomePath(user.Role)}

	case GuardAuthenticated:
		if user == nil {
			return Decision{Redirect: SignInPath}
		}
		if user.Role == platformauth.RoleBanned {
			return Decision{Redirect: BannedPath}
		}
		return Decision{Allow: true}

	case GuardRoles:
		if user == nil {
			return Decision{Redirect: SignInPath}
		}
		if user.Role == platformauth.RoleBanned {
			return Decision{Redirect: BannedPath}
		}
		for _, role := range rule.Roles {
			if user.Role == role {
				return Decision{Allow: true}
			}
		}
		// Excluded roles land on their own home screen, not a generic
		// forbidden page.
		return Decision{Redirect: platformauth.HomePath(user.Role)}
	}

	return Decision{Redirect: UnauthorizedPath}
}

// PublicOnly guards routes that only signed-out users should see.
func PublicOnly() func(http.Handler) http.Handler {
	return guard(Rule{Kind: GuardPublicOnly})
}

// RequireAuth guards routes that need any signed-in user.
func RequireAuth() func(http.Handler) http.Handler {
	return guard(Rule{Kind: GuardAuthenticated})
}

// RequireRoles guards routes restricted to an allow-list of roles.
func RequireRoles(roles ...platformauth.Role) func(http.Handler) http.Handler {
	return guard(Rule{Kind: GuardRoles, Roles: roles})
}

func guard(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Evaluate(rule, GetUser(r.Context()))
			if decision.Allow {
				metrics.GuardDecision("allow")
				next.ServeHTTP(w, r)
				return
			}
			metrics.GuardDecision("redirect")
			http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
		})
	}
}
