package tow

import (
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

// Status is the tow request lifecycle state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusAccepted  Status = "accepted"
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

// Valid checks that the status names a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusAccepted, StatusPending, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the request has reached a final state.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Request is a roadside tow request from a civilian.
type Request struct {
	ID          types.ID       `json:"id"`
	RequesterID types.ID       `json:"requester_id"`
	VehicleType string         `json:"vehicle_type"`
	Location    types.Location `json:"location"`
	Status      Status         `json:"status"`
	OperatorID  *types.ID      `json:"operator_id,omitempty"`
	CompanyID   *types.ID      `json:"company_id,omitempty"`
	ETAMinutes  *int           `json:"eta_minutes,omitempty"`
	Notes       string         `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest files a new tow request.
type CreateRequest struct {
	VehicleType string         `json:"vehicle_type"`
	Location    types.Location `json:"location"`
	Notes       string         `json:"notes,omitempty"`
}

// Validate checks the request.
func (r CreateRequest) Validate() map[string]string {
	details := make(map[string]string)
	if r.VehicleType == "" {
		details["vehicle_type"] = "vehicle type is required"
	}
	if r.Location.Address == "" && (r.Location.Lat == 0 && r.Location.Lng == 0) {
		details["location"] = "an address or coordinates are required"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// AcceptRequest is a tow operator taking a request.
type AcceptRequest struct {
	ETAMinutes int `json:"eta_minutes"`
}

// UpdateStatusRequest moves the request forward.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
}

// ListFilter defines filters for listing tow requests.
type ListFilter struct {
	RequesterID *types.ID `json:"requester_id,omitempty"`
	CompanyID   *types.ID `json:"company_id,omitempty"`
	OperatorID  *types.ID `json:"operator_id,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Open        bool      `json:"open,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
}
