package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/linkaid/platform/internal/shared/events"
	"github.com/linkaid/platform/internal/shared/metrics"
)

// Recorder wraps the write path of every mutation flow. It appends the
// audit entry through the mutation's own transaction, so a mutation
// and its trail entry commit or fail together, and mirrors the entry
// to the event stream best-effort.
type Recorder struct {
	repo *Repository
	bus  *events.Bus // optional
	log  *zap.Logger
}

// NewRecorder creates a recorder. bus may be nil.
func NewRecorder(repo *Repository, bus *events.Bus, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, bus: bus, log: log}
}

// Record appends an entry using the given querier (normally the
// mutation's pgx.Tx). Returning the append error to the caller makes
// the transaction fail rather than silently dropping the trail entry.
func (r *Recorder) Record(ctx context.Context, q Querier, entry *Entry) error {
	if err := r.repo.AppendIn(ctx, q, entry); err != nil {
		return err
	}

	metrics.AuditEntryRecorded(entry.Action)
	r.publish(ctx, entry)
	return nil
}

// RecordBestEffort appends an entry outside any transaction and never
// returns an error. Used by flows whose mutation has already committed
// (for example sign-in bookkeeping) where a lost entry is preferable
// to a failed request; the loss is still logged.
func (r *Recorder) RecordBestEffort(ctx context.Context, entry *Entry) {
	if err := r.repo.Append(ctx, entry); err != nil {
		r.log.Error("audit append failed",
			zap.String("action", entry.Action),
			zap.String("actor_id", entry.Actor.ID.String()),
			zap.Error(err))
		return
	}

	metrics.AuditEntryRecorded(entry.Action)
	r.publish(ctx, entry)
}

// publish mirrors the entry to the event stream as a domain event.
// Action labels double as event types (claim.submitted, tow.accepted,
// policy.deleted), so downstream consumers subscribe by the same names
// the audit trail uses.
func (r *Recorder) publish(ctx context.Context, entry *Entry) {
	if r.bus == nil {
		return
	}

	event := events.NewEvent(entry.Action, entry.ResourceType, map[string]any{
		"entry_id":      entry.ID,
		"description":   entry.Description,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
		"changes":       entry.Changes,
	}).WithActor(entry.Actor.ID, entry.Actor.Role)

	if err := r.bus.Publish(ctx, event); err != nil {
		r.log.Warn("domain event publish failed",
			zap.String("event_type", entry.Action),
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err))
	}
}
