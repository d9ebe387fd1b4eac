package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/types"
)

// Repository provides database operations for policies.
type Repository struct {
	pool     *pgxpool.Pool
	recorder *audit.Recorder
}

// NewRepository creates a new policy repository
func NewRepository(pool *pgxpool.Pool, recorder *audit.Recorder) *Repository {
	return &Repository{pool: pool, recorder: recorder}
}

const policyColumns = `
	id, policy_number, holder_id, company_id, coverage, status,
	registered_at, updated_at`

func scanPolicy(row pgx.Row) (*Policy, error) {
	p := &Policy{}
	err := row.Scan(
		&p.ID, &p.PolicyNumber, &p.HolderID, &p.CompanyID, &p.Coverage, &p.Status,
		&p.RegisteredAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Register inserts a pending policy and records the registration in
// the same transaction.
func (r *Repository) Register(ctx context.Context, actor audit.Actor, policy *Policy) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO policies (id, policy_number, holder_id, company_id, coverage, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, query,
		policy.ID, policy.PolicyNumber, policy.HolderID, policy.CompanyID,
		policy.Coverage, StatusPending,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("a policy with this number is already registered")
		}
		return errors.Wrap(err, "failed to register policy")
	}

	entry := audit.NewEntry(actor, audit.ActionPolicyRegistered,
		fmt.Sprintf("Registered policy %s", policy.PolicyNumber),
		"policy", &policy.ID, map[string]any{"policy_number": policy.PolicyNumber})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a policy
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM policies WHERE id = $1`, policyColumns)

	policy, err := scanPolicy(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("policy", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get policy")
	}
	return policy, nil
}

// GetByNumber retrieves a policy by its policy number
func (r *Repository) GetByNumber(ctx context.Context, number string) (*Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM policies WHERE policy_number = $1`, policyColumns)

	policy, err := scanPolicy(r.pool.QueryRow(ctx, query, number))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("policy", number)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get policy")
	}
	return policy, nil
}

// List lists policies with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Policy, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.HolderID != nil {
		conditions = append(conditions, fmt.Sprintf("holder_id = $%d", argNum))
		args = append(args, *filter.HolderID)
		argNum++
	}

	if filter.CompanyID != nil {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", argNum))
		args = append(args, *filter.CompanyID)
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

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM policies %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count policies")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM policies
		%s
		ORDER BY registered_at DESC
		LIMIT $%d OFFSET $%d`, policyColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list policies")
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan policy")
		}
		policies = append(policies, *p)
	}

	return policies, total, nil
}

// Review activates or rejects a pending policy.
func (r *Repository) Review(ctx context.Context, actor audit.Actor, id types.ID, status Status, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE policies SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`, id, status, StatusPending)
	if err != nil {
		return errors.Wrap(err, "failed to review policy")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("policy is not pending review")
	}

	action := audit.ActionPolicyActivated
	if status == StatusRejected {
		action = audit.ActionPolicyRejected
	}

	changes := map[string]any{"status": status}
	if note != "" {
		changes["note"] = note
	}

	entry := audit.NewEntry(actor, action,
		fmt.Sprintf("Reviewed policy %s as %s", id, status),
		"policy", &id, changes)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes a policy. The holder loses their insurer linkage and
// verified standing in the same transaction; either both writes and
// the audit entry land, or none of them do.
func (r *Repository) Delete(ctx context.Context, actor audit.Actor, id types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var holderID types.ID
	var policyNumber string
	err = tx.QueryRow(ctx, `SELECT holder_id, policy_number FROM policies WHERE id = $1 FOR UPDATE`, id).
		Scan(&holderID, &policyNumber)
	if err == pgx.ErrNoRows {
		return errors.NotFound("policy", id.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock policy")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM policies WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "failed to delete policy")
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET company_id = NULL, is_verified = FALSE, updated_at = NOW()
		WHERE id = $1`, holderID)
	if err != nil {
		return errors.Wrap(err, "failed to update policy holder")
	}

	entry := audit.NewEntry(actor, audit.ActionPolicyDeleted,
		fmt.Sprintf("Deleted policy %s of holder %s", policyNumber, holderID),
		"policy", &id, map[string]any{
			"policy_number": policyNumber,
			"holder_id":     holderID.String(),
		})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
