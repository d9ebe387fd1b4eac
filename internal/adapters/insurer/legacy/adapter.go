// Package legacy implements the insurer adapter against the carriers'
// shared back-office schema, a SQL Server installation most Serbian
// carriers still run.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/linkaid/platform/internal/adapters/insurer"
)

// Adapter implements insurer.Adapter for the legacy back office.
type Adapter struct {
	db     *sql.DB
	config Config
	log    *zap.Logger

	decisionChan chan insurer.DecisionEvent

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// Config holds legacy adapter configuration
type Config struct {
	insurer.Config

	PolicyTable   string `json:"policy_table"`
	DecisionTable string `json:"decision_table"`
}

// DefaultLegacyConfig returns default legacy configuration
func DefaultLegacyConfig() Config {
	return Config{
		Config:        insurer.DefaultConfig(),
		PolicyTable:   "dbo.Policies",
		DecisionTable: "dbo.ClaimDecisions",
	}
}

// New creates a new legacy adapter
func New(cfg Config, log *zap.Logger) (*Adapter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		config:       cfg,
		log:          log,
		decisionChan: make(chan insurer.DecisionEvent, cfg.EventBufferSize),
	}, nil
}

// Start initializes the database connection and starts polling
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.config.Host,
		a.config.Port,
		a.config.Database,
		a.config.User,
		a.config.Password,
	)
	if a.config.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.running = true
	a.lastPoll = time.Now().Add(-a.config.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	return nil
}

// Stop stops the adapter and closes connections
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(a.decisionChan)

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}

	return a.db.PingContext(ctx)
}

// SourceSystem returns the source system name
func (a *Adapter) SourceSystem() string {
	return "legacy-backoffice"
}

// SourceCarrier returns the carrier this adapter is bound to
func (a *Adapter) SourceCarrier() string {
	return a.config.CarrierName
}

// IsConnected reports whether the adapter is running
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// FetchPolicy retrieves a policy record by its number
func (a *Adapter) FetchPolicy(ctx context.Context, policyNumber string) (*insurer.PolicyRecord, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT
			p.PolicyNumber,
			p.HolderName,
			p.HolderEmail,
			p.Coverage,
			p.Status,
			p.ValidFrom,
			p.ValidTo,
			p.LastModified
		FROM %s p
		WHERE p.PolicyNumber = @number
	`, a.config.PolicyTable)

	var record insurer.PolicyRecord
	var holderEmail, coverage sql.NullString

	err := a.db.QueryRowContext(ctx, query, sql.Named("number", policyNumber)).Scan(
		&record.PolicyNumber,
		&record.HolderName,
		&holderEmail,
		&coverage,
		&record.Status,
		&record.ValidFrom,
		&record.ValidTo,
		&record.LastUpdated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("policy not found: %s", policyNumber)
		}
		return nil, fmt.Errorf("failed to query policy: %w", err)
	}

	if holderEmail.Valid {
		record.HolderEmail = holderEmail.String
	}
	if coverage.Valid && coverage.String != "" {
		// Coverage is a semicolon-separated list in the legacy schema.
		record.Coverage = strings.Split(coverage.String, ";")
	}

	record.SourceSystem = a.SourceSystem()
	record.SourceCarrier = a.SourceCarrier()

	return &record, nil
}

// VerifyCoverage checks whether a policy carries a coverage type and
// is currently in force.
func (a *Adapter) VerifyCoverage(ctx context.Context, policyNumber, coverageType string) (bool, error) {
	record, err := a.FetchPolicy(ctx, policyNumber)
	if err != nil {
		return false, err
	}

	now := time.Now()
	if record.Status != "active" || now.Before(record.ValidFrom) || now.After(record.ValidTo) {
		return false, nil
	}

	for _, c := range record.Coverage {
		if strings.EqualFold(strings.TrimSpace(c), coverageType) {
			return true, nil
		}
	}
	return false, nil
}

// SubscribeDecisions starts delivering claim decisions to the handler
func (a *Adapter) SubscribeDecisions(ctx context.Context, handler insurer.DecisionHandler) error {
	if !a.IsConnected() {
		return fmt.Errorf("adapter not connected")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-a.decisionChan:
				if !ok {
					return
				}
				handler(event)
			}
		}
	}()

	return nil
}

// pollLoop polls the decision table for new claim decisions
func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			lastPoll := a.lastPoll
			a.lastPoll = time.Now()
			a.mu.Unlock()

			if err := a.pollDecisions(ctx, lastPoll); err != nil {
				a.log.Warn("claim decision poll failed", zap.Error(err))
			}
		}
	}
}

func (a *Adapter) pollDecisions(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT TOP (@batch)
			d.DecisionID,
			d.ClaimReference,
			d.PolicyNumber,
			d.Decision,
			d.PayoutAmount,
			d.Currency,
			d.Reason,
			d.DecidedAt
		FROM %s d
		WHERE d.DecidedAt > @since
		ORDER BY d.DecidedAt ASC
	`, a.config.DecisionTable)

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("batch", a.config.BatchSize),
		sql.Named("since", since),
	)
	if err != nil {
		return fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var event insurer.DecisionEvent
		var payout sql.NullFloat64
		var currency, reason sql.NullString

		err := rows.Scan(
			&event.EventID,
			&event.ClaimReference,
			&event.PolicyNumber,
			&event.Decision,
			&payout,
			&currency,
			&reason,
			&event.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to scan decision: %w", err)
		}

		if payout.Valid {
			event.PayoutAmount = payout.Float64
		}
		if currency.Valid {
			event.Currency = currency.String
		}
		if reason.Valid {
			event.Reason = reason.String
		}

		event.SourceSystem = a.SourceSystem()
		event.SourceCarrier = a.SourceCarrier()

		select {
		case a.decisionChan <- event:
		default:
			a.log.Warn("decision channel full, dropping event",
				zap.String("claim_reference", event.ClaimReference))
		}
	}

	return rows.Err()
}
