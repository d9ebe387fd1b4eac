package claim

import (
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

// Status is the claim lifecycle state.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusRejected  Status = "rejected"
)

// Valid checks that the status names a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusPending, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the claim can still change state.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Claim is an insurance claim submitted by a civilian.
type Claim struct {
	ID          types.ID       `json:"id"`
	SubmitterID types.ID       `json:"submitter_id"`
	Category    string         `json:"category"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status"`
	Location    types.Location `json:"location"`
	ImageURLs   []string       `json:"image_urls,omitempty"`
	InsurerID   *types.ID      `json:"insurer_company_id,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubmitClaimRequest is the civilian claim submission.
type SubmitClaimRequest struct {
	Category    string         `json:"category"`
	Description string         `json:"description,omitempty"`
	Location    types.Location `json:"location"`
	ImageURLs   []string       `json:"image_urls,omitempty"`
}

// Validate checks the submission.
func (r SubmitClaimRequest) Validate() map[string]string {
	details := make(map[string]string)
	if r.Category == "" {
		details["category"] = "claim category is required"
	}
	if len(r.ImageURLs) > 10 {
		details["image_urls"] = "at most 10 images per claim"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// UpdateStatusRequest moves a claim through its lifecycle.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
}

// AssignInsurerRequest routes a claim to an insurance company.
type AssignInsurerRequest struct {
	InsurerID types.ID `json:"insurer_company_id"`
}

// ListFilter defines filters for listing claims.
type ListFilter struct {
	SubmitterID *types.ID `json:"submitter_id,omitempty"`
	InsurerID   *types.ID `json:"insurer_company_id,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Category    string    `json:"category,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
}
