package incident

import (
	"testing"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/types"
)

func TestPriorityValid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if Priority("urgent").Valid() || Priority("").Valid() {
		t.Error("unknown priorities must be invalid")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusOpen, StatusAssigned, StatusResolved} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("closed").Valid() {
		t.Error("unknown statuses must be invalid")
	}
}

func TestReportRequestValidate(t *testing.T) {
	valid := ReportRequest{Description: "Two-car collision on the E75"}
	if details := valid.Validate(); details != nil {
		t.Fatalf("expected valid report, got %v", details)
	}

	if details := (ReportRequest{}).Validate(); details["description"] == "" {
		t.Error("expected description error")
	}

	badPriority := ReportRequest{Description: "x", Priority: Priority("urgent")}
	if details := badPriority.Validate(); details["priority"] == "" {
		t.Error("expected priority error")
	}
}

func TestCanSee(t *testing.T) {
	reporterID := types.NewID()
	inc := &Incident{ReporterID: reporterID}

	if !canSee(&auth.User{Role: platformauth.RoleResponder}, inc) {
		t.Error("responders see the whole board")
	}
	if !canSee(&auth.User{Role: platformauth.RoleDispatcher}, inc) {
		t.Error("dispatchers see the whole board")
	}
	if !canSee(&auth.User{ID: reporterID, Role: platformauth.RoleCivilian}, inc) {
		t.Error("reporters see their own incidents")
	}
	if canSee(&auth.User{ID: types.NewID(), Role: platformauth.RoleCivilian}, inc) {
		t.Error("unrelated civilians must not see the incident")
	}
}
