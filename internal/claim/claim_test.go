package claim

import (
	"testing"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/types"
)

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
	}{
		{StatusSubmitted, true},
		{StatusPending, true},
		{StatusResolved, true},
		{StatusRejected, true},
		{Status("open"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("Status(%q).Valid() = %t, want %t", tt.status, got, tt.valid)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusSubmitted.Terminal() || StatusPending.Terminal() {
		t.Error("open statuses must not be terminal")
	}
	if !StatusResolved.Terminal() || !StatusRejected.Terminal() {
		t.Error("resolved and rejected are terminal")
	}
}

func TestSubmitClaimRequestValidate(t *testing.T) {
	valid := SubmitClaimRequest{Category: "collision"}
	if details := valid.Validate(); details != nil {
		t.Fatalf("expected valid request, got %v", details)
	}

	missing := SubmitClaimRequest{}
	if details := missing.Validate(); details["category"] == "" {
		t.Error("expected category error")
	}

	images := make([]string, 11)
	tooMany := SubmitClaimRequest{Category: "collision", ImageURLs: images}
	if details := tooMany.Validate(); details["image_urls"] == "" {
		t.Error("expected image count error")
	}
}

func TestCanSee(t *testing.T) {
	submitterID := types.NewID()
	insurerID := types.NewID()

	claim := &Claim{
		ID:          types.NewID(),
		SubmitterID: submitterID,
		InsurerID:   &insurerID,
	}
	unrouted := &Claim{
		ID:          types.NewID(),
		SubmitterID: submitterID,
	}

	tests := []struct {
		name string
		user *auth.User
		c    *Claim
		want bool
	}{
		{"super admin sees everything", &auth.User{Role: platformauth.RoleSuperAdmin}, claim, true},
		{"submitter sees own claim", &auth.User{ID: submitterID, Role: platformauth.RoleCivilian}, claim, true},
		{"other civilian blocked", &auth.User{ID: types.NewID(), Role: platformauth.RoleCivilian}, claim, false},
		{"routed insurer sees claim", &auth.User{Role: platformauth.RoleInsurer, CompanyID: insurerID}, claim, true},
		{"other insurer blocked", &auth.User{Role: platformauth.RoleInsurer, CompanyID: types.NewID()}, claim, false},
		{"insurer blocked on unrouted claim", &auth.User{Role: platformauth.RoleInsurer, CompanyID: insurerID}, unrouted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canSee(tt.user, tt.c); got != tt.want {
				t.Errorf("canSee() = %t, want %t", got, tt.want)
			}
		})
	}
}
