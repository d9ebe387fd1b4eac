package incident

import (
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

// Priority is the triage priority of an incident.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid checks that the priority names a known level.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is the incident lifecycle state.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAssigned Status = "assigned"
	StatusResolved Status = "resolved"
)

// Valid checks that the status names a known lifecycle state.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusAssigned || s == StatusResolved
}

// Incident is a roadside incident report.
type Incident struct {
	ID           types.ID       `json:"id"`
	ReporterID   types.ID       `json:"reporter_id"`
	Description  string         `json:"description"`
	AISuggestion string         `json:"ai_suggestion,omitempty"`
	Location     types.Location `json:"location"`
	Priority     Priority       `json:"priority"`
	Status       Status         `json:"status"`
	ResponderID  *types.ID      `json:"responder_id,omitempty"`
	ImageURLs    []string       `json:"image_urls,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ReportRequest files a new incident.
type ReportRequest struct {
	Description string         `json:"description"`
	Location    types.Location `json:"location"`
	Priority    Priority       `json:"priority,omitempty"`
	ImageURLs   []string       `json:"image_urls,omitempty"`
}

// Validate checks the report.
func (r ReportRequest) Validate() map[string]string {
	details := make(map[string]string)
	if r.Description == "" {
		details["description"] = "description is required"
	}
	if r.Priority != "" && !r.Priority.Valid() {
		details["priority"] = "priority must be low, medium, high or critical"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// AssignRequest puts a responder on an incident.
type AssignRequest struct {
	ResponderID types.ID `json:"responder_id"`
}

// ListFilter defines filters for listing incidents.
type ListFilter struct {
	ReporterID  *types.ID `json:"reporter_id,omitempty"`
	ResponderID *types.ID `json:"responder_id,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Offset      int       `json:"offset,omitempty"`
}
