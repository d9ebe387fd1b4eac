package company

import (
	"testing"

	platformauth "github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/types"
)

func TestKindValid(t *testing.T) {
	tests := []struct {
		kind  Kind
		valid bool
	}{
		{KindTowing, true},
		{KindInsurance, true},
		{Kind("leasing"), false},
		{Kind(""), false},
	}

	for _, tt := range tests {
		if got := tt.kind.Valid(); got != tt.valid {
			t.Errorf("Kind(%q).Valid() = %t, want %t", tt.kind, got, tt.valid)
		}
	}
}

func TestKindTable(t *testing.T) {
	if KindTowing.table() != "towing_companies" {
		t.Errorf("towing kind maps to %s", KindTowing.table())
	}
	if KindInsurance.table() != "insurance_companies" {
		t.Errorf("insurance kind maps to %s", KindInsurance.table())
	}
}

func TestAdminRole(t *testing.T) {
	if adminRole(KindTowing) != platformauth.RoleTowingCompany {
		t.Error("towing company admin should get the towing_company role")
	}
	if adminRole(KindInsurance) != platformauth.RoleInsurer {
		t.Error("insurance company admin should get the insurer role")
	}
}

func TestCreateCompanyRequestValidate(t *testing.T) {
	valid := CreateCompanyRequest{
		Kind:       KindTowing,
		Name:       "Brza Pomoc",
		AdminEmail: "ana@example.com",
	}
	if details := valid.Validate(); details != nil {
		t.Fatalf("expected valid request, got %v", details)
	}

	empty := CreateCompanyRequest{}
	details := empty.Validate()
	for _, field := range []string{"kind", "name", "admin_email"} {
		if _, ok := details[field]; !ok {
			t.Errorf("expected error for field %q, got %v", field, details)
		}
	}
}

func TestCompanyScope(t *testing.T) {
	companyID := types.NewID()
	otherID := types.NewID()

	admin := &auth.User{ID: types.NewID(), Role: platformauth.RoleSuperAdmin}
	owner := &auth.User{ID: types.NewID(), Role: platformauth.RoleTowingCompany, CompanyID: companyID}
	stranger := &auth.User{ID: types.NewID(), Role: platformauth.RoleTowingCompany, CompanyID: otherID}

	if !companyScope(admin, companyID) {
		t.Error("super admin should reach any company")
	}
	if !companyScope(owner, companyID) {
		t.Error("company admin should reach their own company")
	}
	if companyScope(stranger, companyID) {
		t.Error("company admin must not reach another company")
	}
}
