package company

import (
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

// Kind distinguishes the two company directories.
type Kind string

const (
	KindTowing    Kind = "towing"
	KindInsurance Kind = "insurance"
)

// Valid checks that the kind names a known directory.
func (k Kind) Valid() bool {
	return k == KindTowing || k == KindInsurance
}

// table returns the backing table for a directory.
func (k Kind) table() string {
	if k == KindInsurance {
		return "insurance_companies"
	}
	return "towing_companies"
}

// Company is a towing or insurance company record. The admin user is
// the account that manages the company dashboard.
type Company struct {
	ID           types.ID `json:"id"`
	Kind         Kind     `json:"kind"`
	Name         string   `json:"name"`
	Region       string   `json:"region,omitempty"`
	AdminUserID  types.ID `json:"admin_user_id"`
	ContactEmail string   `json:"contact_email,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	IsActive     bool     `json:"is_active"`
	IsVerified   bool     `json:"is_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VehicleStatus tracks fleet availability.
type VehicleStatus string

const (
	VehicleAvailable  VehicleStatus = "available"
	VehicleDispatched VehicleStatus = "dispatched"
	VehicleOffline    VehicleStatus = "offline"
)

// Vehicle is one truck on a towing company's fleet.
type Vehicle struct {
	ID           types.ID      `json:"id"`
	CompanyID    types.ID      `json:"company_id"`
	Plate        string        `json:"plate"`
	VehicleType  string        `json:"vehicle_type"`
	CapacityTons *float64      `json:"capacity_tons,omitempty"`
	Status       VehicleStatus `json:"status"`
	OperatorID   *types.ID     `json:"operator_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCompanyRequest registers a company and promotes its admin.
// AdminEmail must point at an existing profile; that account becomes
// the towing_company or insurer admin in the same transaction.
type CreateCompanyRequest struct {
	Kind         Kind   `json:"kind"`
	Name         string `json:"name"`
	Region       string `json:"region,omitempty"`
	AdminEmail   string `json:"admin_email"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// Validate checks the create request.
func (r CreateCompanyRequest) Validate() map[string]string {
	details := make(map[string]string)
	if !r.Kind.Valid() {
		details["kind"] = "kind must be towing or insurance"
	}
	if r.Name == "" {
		details["name"] = "company name is required"
	}
	if r.AdminEmail == "" {
		details["admin_email"] = "admin email is required"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// UpdateCompanyRequest is a partial company update.
type UpdateCompanyRequest struct {
	Name         *string `json:"name,omitempty"`
	Region       *string `json:"region,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
}

// CreateVehicleRequest adds a truck to the fleet.
type CreateVehicleRequest struct {
	Plate        string   `json:"plate"`
	VehicleType  string   `json:"vehicle_type"`
	CapacityTons *float64 `json:"capacity_tons,omitempty"`
}

// Validate checks the vehicle request.
func (r CreateVehicleRequest) Validate() map[string]string {
	details := make(map[string]string)
	if r.Plate == "" {
		details["plate"] = "plate is required"
	}
	if r.VehicleType == "" {
		details["vehicle_type"] = "vehicle type is required"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// ListFilter defines filters for listing companies.
type ListFilter struct {
	Kind     Kind   `json:"kind,omitempty"`
	Region   string `json:"region,omitempty"`
	Active   *bool  `json:"active,omitempty"`
	Verified *bool  `json:"verified,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
