package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/types"
)

func serveGuarded(t *testing.T, mw func(http.Handler) http.Handler, user *User) *httptest.ResponseRecorder {
	t.Helper()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("children"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/screen", nil)
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), user))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func testUser(role platformauth.Role) *User {
	return &User{
		ID:   types.NewID(),
		Role: role,
	}
}

func TestRequireRolesAllowList(t *testing.T) {
	allowed := []platformauth.Role{platformauth.RoleSuperAdmin, platformauth.RoleInsurer}

	tests := []struct {
		role         platformauth.Role
		wantRendered bool
		wantRedirect string
	}{
		{platformauth.RoleSuperAdmin, true, ""},
		{platformauth.RoleInsurer, true, ""},
		{platformauth.RoleTowingCompany, false, "/company/home"},
		{platformauth.RoleCivilian, false, "/unauthorized"},
		{platformauth.RoleTowOperator, false, "/unauthorized"},
		{platformauth.RoleResponder, false, "/unauthorized"},
		{platformauth.RoleDriver, false, "/unauthorized"},
		{platformauth.RoleDispatcher, false, "/unauthorized"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rec := serveGuarded(t, RequireRoles(allowed...), testUser(tt.role))

			if tt.wantRendered {
				if rec.Code != http.StatusOK {
					t.Errorf("expected children to render, got status %d", rec.Code)
				}
				return
			}

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected redirect, got status %d", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tt.wantRedirect {
				t.Errorf("expected redirect to %s, got %s", tt.wantRedirect, got)
			}
		})
	}
}

func TestRequireRolesCompanyFallback(t *testing.T) {
	// A towing company hitting a super-admin screen lands on its own
	// home, not the generic unauthorized page.
	rec := serveGuarded(t, RequireRoles(platformauth.RoleSuperAdmin), testUser(platformauth.RoleTowingCompany))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got status %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/company/home" {
		t.Errorf("expected /company/home, got %s", got)
	}
}

func TestRequireAuthUnauthenticated(t *testing.T) {
	rec := serveGuarded(t, RequireAuth(), nil)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got status %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != SignInPath {
		t.Errorf("expected redirect to %s, got %s", SignInPath, got)
	}
}

func TestRequireAuthBanned(t *testing.T) {
	rec := serveGuarded(t, RequireAuth(), testUser(platformauth.RoleBanned))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got status %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != BannedPath {
		t.Errorf("expected redirect to %s, got %s", BannedPath, got)
	}
}

func TestPublicOnly(t *testing.T) {
	tests := []struct {
		name         string
		user         *User
		wantRendered bool
		wantRedirect string
	}{
		{"no identity", nil, true, ""},
		{"identity with role", testUser(platformauth.RoleInsurer), false, "/insurer/home"},
		{"identity without role", testUser(""), false, SignInPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveGuarded(t, PublicOnly(), tt.user)

			if tt.wantRendered {
				if rec.Code != http.StatusOK {
					t.Errorf("expected children to render, got status %d", rec.Code)
				}
				return
			}

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected redirect, got status %d", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tt.wantRedirect {
				t.Errorf("expected redirect to %s, got %s", tt.wantRedirect, got)
			}
		})
	}
}

func TestEvaluateUnknownRoleInAllowListGuard(t *testing.T) {
	decision := Evaluate(Rule{Kind: GuardRoles, Roles: []platformauth.Role{platformauth.RoleSuperAdmin}}, testUser("intruder"))
	if decision.Allow {
		t.Fatal("unknown role must not be allowed")
	}
	if decision.Redirect != "/unauthorized" {
		t.Errorf("expected /unauthorized, got %s", decision.Redirect)
	}
}
