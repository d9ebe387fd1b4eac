// Package insurer defines the interface to external insurer systems.
// Implementations connect to a specific carrier's back office and
// expose a unified API for policy lookups and claim decisions.
package insurer

import (
	"context"
	"time"
)

// Adapter is the interface for insurer back-office adapters.
type Adapter interface {
	// Policy data retrieval
	FetchPolicy(ctx context.Context, policyNumber string) (*PolicyRecord, error)
	VerifyCoverage(ctx context.Context, policyNumber, coverageType string) (bool, error)

	// Claim decision subscription
	SubscribeDecisions(ctx context.Context, handler DecisionHandler) error

	// Adapter metadata
	SourceSystem() string
	SourceCarrier() string
	IsConnected() bool

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) error
}

// DecisionHandler is called when the carrier decides a claim.
type DecisionHandler func(event DecisionEvent)

// PolicyRecord is a policy as the carrier's back office sees it.
type PolicyRecord struct {
	PolicyNumber string    `json:"policy_number"`
	HolderName   string    `json:"holder_name"`
	HolderEmail  string    `json:"holder_email,omitempty"`
	Coverage     []string  `json:"coverage"`
	Status       string    `json:"status"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
	LastUpdated  time.Time `json:"last_updated"`

	SourceSystem  string `json:"source_system"`
	SourceCarrier string `json:"source_carrier"`
}

// DecisionEvent is a claim decision taken in the carrier's system.
type DecisionEvent struct {
	EventID        string    `json:"event_id"`
	Timestamp      time.Time `json:"timestamp"`
	ClaimReference string    `json:"claim_reference"`
	PolicyNumber   string    `json:"policy_number"`
	Decision       string    `json:"decision"` // approved, rejected, pending_documents
	PayoutAmount   float64   `json:"payout_amount,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	SourceSystem   string    `json:"source_system"`
	SourceCarrier  string    `json:"source_carrier"`
}

// Config holds common configuration for insurer adapters.
type Config struct {
	// Database connection
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`

	// Carrier info
	CarrierCode string `json:"carrier_code"`
	CarrierName string `json:"carrier_name"`

	// Polling configuration
	PollInterval    time.Duration `json:"poll_interval"`
	BatchSize       int           `json:"batch_size"`
	ConnectionRetry time.Duration `json:"connection_retry"`

	// Event publishing
	EventBufferSize int `json:"event_buffer_size"`
}

// DefaultConfig returns default adapter configuration
func DefaultConfig() Config {
	return Config{
		Port:            1433, // SQL Server default
		SSLMode:         "disable",
		PollInterval:    30 * time.Second,
		BatchSize:       100,
		ConnectionRetry: 30 * time.Second,
		EventBufferSize: 1000,
	}
}
