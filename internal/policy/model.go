package policy

import (
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

// Status is the policy lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

// Valid checks that the status names a known lifecycle state.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusActive || s == StatusRejected
}

// Policy is an insurance policy registered for a holder.
type Policy struct {
	ID           types.ID  `json:"id"`
	PolicyNumber string    `json:"policy_number"`
	HolderID     types.ID  `json:"holder_id"`
	CompanyID    *types.ID `json:"company_id,omitempty"`
	Coverage     []string  `json:"coverage,omitempty"`
	Status       Status    `json:"status"`

	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterPolicyRequest registers a policy for review.
type RegisterPolicyRequest struct {
	PolicyNumber string    `json:"policy_number"`
	HolderEmail  string    `json:"holder_email,omitempty"`
	CompanyID    *types.ID `json:"company_id,omitempty"`
	Coverage     []string  `json:"coverage,omitempty"`
}

// Validate checks the registration.
func (r RegisterPolicyRequest) Validate() map[string]string {
	details := make(map[string]string)
	if r.PolicyNumber == "" {
		details["policy_number"] = "policy number is required"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// ReviewRequest activates or rejects a pending policy.
type ReviewRequest struct {
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
}

// ListFilter defines filters for listing policies.
type ListFilter struct {
	HolderID  *types.ID `json:"holder_id,omitempty"`
	CompanyID *types.ID `json:"company_id,omitempty"`
	Status    *Status   `json:"status,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}
