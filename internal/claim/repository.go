package claim

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

// Repository provides database operations for claims.
type Repository struct {
	pool     *pgxpool.Pool
	recorder *audit.Recorder
}

// NewRepository creates a new claim repository
func NewRepository(pool *pgxpool.Pool, recorder *audit.Recorder) *Repository {
	return &Repository{pool: pool, recorder: recorder}
}

const claimColumns = `
	id, submitter_id, category, description, status,
	location_address, location_city, location_lat, location_lng,
	image_urls, insurer_company_id, submitted_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	c := &Claim{}
	var lat, lng *float64
	err := row.Scan(
		&c.ID, &c.SubmitterID, &c.Category, &c.Description, &c.Status,
		&c.Location.Address, &c.Location.City, &lat, &lng,
		&c.ImageURLs, &c.InsurerID, &c.SubmittedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil {
		c.Location.Lat = *lat
	}
	if lng != nil {
		c.Location.Lng = *lng
	}
	return c, nil
}

// Submit inserts a claim and records the submission in the same
// transaction.
func (r *Repository) Submit(ctx context.Context, actor audit.Actor, claim *Claim) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO claims (
			id, submitter_id, category, description, status,
			location_address, location_city, location_lat, location_lng, image_urls
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, query,
		claim.ID, claim.SubmitterID, claim.Category, claim.Description, StatusSubmitted,
		claim.Location.Address, claim.Location.City, claim.Location.Lat, claim.Location.Lng,
		claim.ImageURLs,
	)
	if err != nil {
		return errors.Wrap(err, "failed to submit claim")
	}

	entry := audit.NewEntry(actor, audit.ActionClaimSubmitted,
		fmt.Sprintf("Submitted %s claim", claim.Category),
		"claim", &claim.ID, map[string]any{"category": claim.Category})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit claim")
	}

	metrics.ClaimSubmitted(claim.Category)
	return nil
}

// GetByID retrieves a claim
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Claim, error) {
	query := fmt.Sprintf(`SELECT %s FROM claims WHERE id = $1`, claimColumns)

	claim, err := scanClaim(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("claim", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get claim")
	}
	return claim, nil
}

// List lists claims with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Claim, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.SubmitterID != nil {
		conditions = append(conditions, fmt.Sprintf("submitter_id = $%d", argNum))
		args = append(args, *filter.SubmitterID)
		argNum++
	}

	if filter.InsurerID != nil {
		conditions = append(conditions, fmt.Sprintf("insurer_company_id = $%d", argNum))
		args = append(args, *filter.InsurerID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, filter.Category)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM claims %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count claims")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM claims
		%s
		ORDER BY submitted_at DESC
		LIMIT $%d OFFSET $%d`, claimColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list claims")
	}
	defer rows.Close()

	var claims []Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan claim")
		}
		claims = append(claims, *c)
	}

	return claims, total, nil
}

// UpdateStatus moves a claim through its lifecycle and records the
// transition in the same transaction.
func (r *Repository) UpdateStatus(ctx context.Context, actor audit.Actor, id types.ID, status Status, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM claims WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return errors.NotFound("claim", id.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock claim")
	}

	if current.Terminal() {
		return errors.Conflict(fmt.Sprintf("claim is already %s", current))
	}

	_, err = tx.Exec(ctx, `UPDATE claims SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "failed to update claim status")
	}

	changes := map[string]any{"from": current, "to": status}
	if note != "" {
		changes["note"] = note
	}

	entry := audit.NewEntry(actor, audit.ActionClaimUpdated,
		fmt.Sprintf("Moved claim %s from %s to %s", id, current, status),
		"claim", &id, changes)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit status update")
	}

	metrics.ClaimStatusChanged(string(current), string(status))
	return nil
}

// AssignInsurer routes a claim to an insurance company and moves it to
// pending.
func (r *Repository) AssignInsurer(ctx context.Context, actor audit.Actor, id, insurerID types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE claims SET insurer_company_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`, id, insurerID, StatusPending, StatusSubmitted)
	if err != nil {
		return errors.Wrap(err, "failed to assign claim")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("claim is not open for assignment")
	}

	entry := audit.NewEntry(actor, audit.ActionClaimAssigned,
		fmt.Sprintf("Routed claim %s to insurer %s", id, insurerID),
		"claim", &id, map[string]any{"insurer_company_id": insurerID.String()})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes a claim. Only open claims may be deleted.
func (r *Repository) Delete(ctx context.Context, actor audit.Actor, id types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		DELETE FROM claims WHERE id = $1 AND status IN ($2, $3)`,
		id, StatusSubmitted, StatusPending)
	if err != nil {
		return errors.Wrap(err, "failed to delete claim")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("only open claims can be deleted")
	}

	entry := audit.NewEntry(actor, audit.ActionClaimDeleted,
		fmt.Sprintf("Deleted claim %s", id),
		"claim", &id, nil)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
