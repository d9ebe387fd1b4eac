package tow

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
		{StatusRequested, true},
		{StatusAccepted, true},
		{StatusPending, true},
		{StatusResolved, true},
		{StatusCancelled, true},
		{Status("done"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.valid {
			t.Errorf("Status(%q).Valid() = %t, want %t", tt.status, got, tt.valid)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusRequested, StatusAccepted, StatusPending} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
	for _, s := range []Status{StatusResolved, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestCreateRequestValidate(t *testing.T) {
	withAddress := CreateRequest{VehicleType: "car", Location: types.Location{Address: "Bulevar 12"}}
	if details := withAddress.Validate(); details != nil {
		t.Fatalf("expected valid request, got %v", details)
	}

	withCoords := CreateRequest{VehicleType: "truck", Location: types.NewLocation(44.8, 20.4)}
	if details := withCoords.Validate(); details != nil {
		t.Fatalf("expected valid request, got %v", details)
	}

	empty := CreateRequest{}
	details := empty.Validate()
	if details["vehicle_type"] == "" {
		t.Error("expected vehicle_type error")
	}
	if details["location"] == "" {
		t.Error("expected location error")
	}
}

func TestCanSee(t *testing.T) {
	requesterID := types.NewID()
	companyID := types.NewID()

	open := &Request{RequesterID: requesterID, Status: StatusRequested}
	taken := &Request{RequesterID: requesterID, Status: StatusAccepted, CompanyID: &companyID}

	operator := &auth.User{Role: platformauth.RoleTowOperator, CompanyID: companyID}
	rival := &auth.User{Role: platformauth.RoleTowOperator, CompanyID: types.NewID()}
	requester := &auth.User{ID: requesterID, Role: platformauth.RoleCivilian}
	bystander := &auth.User{ID: types.NewID(), Role: platformauth.RoleCivilian}

	if !canSee(operator, open) || !canSee(rival, open) {
		t.Error("any operator should see the open queue")
	}
	if !canSee(operator, taken) {
		t.Error("assigned company should see its own request")
	}
	if canSee(rival, taken) {
		t.Error("a rival company must not see a taken request")
	}
	if !canSee(requester, taken) {
		t.Error("the requester should always see their own request")
	}
	if canSee(bystander, taken) {
		t.Error("an unrelated civilian must not see the request")
	}
}
