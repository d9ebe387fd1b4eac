package incident

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/metrics"
	"github.com/linkaid/platform/internal/shared/types"
)

// Repository provides database operations for incidents.
type Repository struct {
	pool     *pgxpool.Pool
	recorder *audit.Recorder
}

// NewRepository creates a new incident repository
func NewRepository(pool *pgxpool.Pool, recorder *audit.Recorder) *Repository {
	return &Repository{pool: pool, recorder: recorder}
}

const incidentColumns = `
	id, reporter_id, description, ai_suggestion,
	location_address, location_city, location_lat, location_lng,
	priority, status, responder_id, image_urls,
	created_at, updated_at, resolved_at`

func scanIncident(row pgx.Row) (*Incident, error) {
	inc := &Incident{}
	var lat, lng *float64
	var aiSuggestion *string
	err := row.Scan(
		&inc.ID, &inc.ReporterID, &inc.Description, &aiSuggestion,
		&inc.Location.Address, &inc.Location.City, &lat, &lng,
		&inc.Priority, &inc.Status, &inc.ResponderID, &inc.ImageURLs,
		&inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if aiSuggestion != nil {
		inc.AISuggestion = *aiSuggestion
	}
	if lat != nil {
		inc.Location.Lat = *lat
	}
	if lng != nil {
		inc.Location.Lng = *lng
	}
	return inc, nil
}

// Report inserts an incident and records it in the same transaction.
func (r *Repository) Report(ctx context.Context, actor audit.Actor, inc *Incident) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO incidents (
			id, reporter_id, description, ai_suggestion,
			location_address, location_city, location_lat, location_lng,
			priority, status, image_urls
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		inc.ID, inc.ReporterID, inc.Description, inc.AISuggestion,
		inc.Location.Address, inc.Location.City, inc.Location.Lat, inc.Location.Lng,
		inc.Priority, StatusOpen, inc.ImageURLs,
	)
	if err != nil {
		return errors.Wrap(err, "failed to report incident")
	}

	entry := audit.NewEntry(actor, audit.ActionIncidentReported,
		fmt.Sprintf("Reported a %s priority incident", inc.Priority),
		"incident", &inc.ID, map[string]any{"priority": inc.Priority})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit incident")
	}

	metrics.IncidentReported(string(inc.Priority))
	return nil
}

// GetByID retrieves an incident
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE id = $1`, incidentColumns)

	inc, err := scanIncident(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("incident", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get incident")
	}
	return inc, nil
}

// List lists incidents with optional filters, highest priority first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Incident, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.ReporterID != nil {
		conditions = append(conditions, fmt.Sprintf("reporter_id = $%d", argNum))
		args = append(args, *filter.ReporterID)
		argNum++
	}

	if filter.ResponderID != nil {
		conditions = append(conditions, fmt.Sprintf("responder_id = $%d", argNum))
		args = append(args, *filter.ResponderID)
		argNum++
	}

	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argNum))
		args = append(args, *filter.Priority)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM incidents %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count incidents")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM incidents
		%s
		ORDER BY CASE priority
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3
		END, created_at DESC
		LIMIT $%d OFFSET $%d`, incidentColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list incidents")
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan incident")
		}
		incidents = append(incidents, *inc)
	}

	return incidents, total, nil
}

// Assign puts a responder on an open incident.
func (r *Repository) Assign(ctx context.Context, actor audit.Actor, id, responderID types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE incidents SET responder_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`, id, responderID, StatusAssigned, StatusOpen)
	if err != nil {
		return errors.Wrap(err, "failed to assign incident")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("incident is not open for assignment")
	}

	entry := audit.NewEntry(actor, audit.ActionIncidentAssigned,
		fmt.Sprintf("Assigned responder %s to incident %s", responderID, id),
		"incident", &id, map[string]any{"responder_id": responderID.String()})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Resolve closes an incident.
func (r *Repository) Resolve(ctx context.Context, actor audit.Actor, id types.ID, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE incidents SET status = $2, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status != $2`, id, StatusResolved)
	if err != nil {
		return errors.Wrap(err, "failed to resolve incident")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("incident is already resolved")
	}

	changes := map[string]any{}
	if note != "" {
		changes["note"] = note
	}

	entry := audit.NewEntry(actor, audit.ActionIncidentResolved,
		fmt.Sprintf("Resolved incident %s", id),
		"incident", &id, changes)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
