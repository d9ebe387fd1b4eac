package ai

import "time"

// TriageRequest asks the triage service to assess an incident report.
type TriageRequest struct {
	Description string  `json:"description"`
	Address     string  `json:"address,omitempty"`
	City        string  `json:"city,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lng         float64 `json:"lng,omitempty"`
}

// TriageResponse is the service's assessment of a report.
type TriageResponse struct {
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	Suggestion       string    `json:"suggestion"`
	Priority         string    `json:"priority"` // low, medium, high, critical
	Confidence       float64   `json:"confidence"`
	ProcessingTimeMs int       `json:"processing_time_ms"`
	ModelUsed        string    `json:"model_used"`
}
