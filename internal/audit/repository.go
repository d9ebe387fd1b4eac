package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/types"
)

// Querier is the subset of pgx operations the repository needs.
// Both *pgxpool.Pool and pgx.Tx satisfy it, so an append can ride the
// same transaction as the mutation it documents.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides append-only audit log operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// chainLockKey is the advisory lock key guarding the chain head.
const chainLockKey = 815001

// Append appends a new audit entry in its own transaction.
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := r.AppendIn(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendIn appends a new audit entry inside the given transaction, so
// the entry commits or rolls back with the mutation it documents.
// Appends take a transaction-scoped advisory lock before reading the
// chain head: a concurrent transaction cannot see an uncommitted tail
// entry, so without the lock two in-flight appends would both link to
// the same predecessor and the chain would fork.
func (r *Repository) AppendIn(ctx context.Context, q Querier, entry *Entry) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
		return errors.Wrap(err, "failed to lock audit chain")
	}

	var prevHash string
	err := q.QueryRow(ctx, `
		SELECT hash FROM audit_entries
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&prevHash)
	if err != nil && err != pgx.ErrNoRows {
		return errors.Wrap(err, "failed to get last audit hash")
	}

	entry.PrevHash = prevHash
	entry.Hash = entry.calculateHash()

	changesJSON, err := json.Marshal(entry.Changes)
	if err != nil {
		return errors.Wrap(err, "failed to marshal changes")
	}

	query := `
		INSERT INTO audit_entries (
			id, timestamp, hash, prev_hash,
			actor_id, actor_name, actor_role, actor_ip,
			action, description, resource_type, resource_id, changes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		) RETURNING sequence`

	err = q.QueryRow(ctx, query,
		entry.ID, entry.Timestamp, entry.Hash, entry.PrevHash,
		entry.Actor.ID, entry.Actor.Name, entry.Actor.Role, entry.Actor.IP,
		entry.Action, entry.Description, entry.ResourceType, entry.ResourceID,
		changesJSON,
	).Scan(&entry.Sequence)

	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	return nil
}

const entryColumns = `
	sequence, id, timestamp, hash, prev_hash,
	actor_id, actor_name, actor_role, actor_ip,
	action, description, resource_type, resource_id, changes`

func scanEntry(row pgx.Row) (*Entry, error) {
	entry := &Entry{}
	var changesJSON []byte
	err := row.Scan(
		&entry.Sequence, &entry.ID, &entry.Timestamp, &entry.Hash, &entry.PrevHash,
		&entry.Actor.ID, &entry.Actor.Name, &entry.Actor.Role, &entry.Actor.IP,
		&entry.Action, &entry.Description, &entry.ResourceType, &entry.ResourceID,
		&changesJSON,
	)
	if err != nil {
		return nil, err
	}
	if len(changesJSON) > 0 {
		if err := json.Unmarshal(changesJSON, &entry.Changes); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// FindByID finds an audit entry by ID
func (r *Repository) FindByID(ctx context.Context, id types.ID) (*Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_entries WHERE id = $1`, entryColumns)

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("audit entry", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get audit entry")
	}
	return entry, nil
}

// List lists audit entries with filters, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*Entry, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.ActorID != nil {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argNum))
		args = append(args, *filter.ActorID)
		argNum++
	}

	if filter.ActorRole != "" {
		conditions = append(conditions, fmt.Sprintf("actor_role = $%d", argNum))
		args = append(args, filter.ActorRole)
		argNum++
	}

	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action LIKE $%d", argNum))
		args = append(args, filter.Action+"%")
		argNum++
	}

	if filter.ResourceType != "" {
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", argNum))
		args = append(args, filter.ResourceType)
		argNum++
	}

	if filter.ResourceID != nil {
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", argNum))
		args = append(args, *filter.ResourceID)
		argNum++
	}

	if filter.StartTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argNum))
		args = append(args, *filter.StartTime)
		argNum++
	}

	if filter.EndTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argNum))
		args = append(args, *filter.EndTime)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit entries")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 200 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		%s
		ORDER BY sequence DESC
		LIMIT $%d OFFSET $%d`, entryColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, entry)
	}

	return entries, total, nil
}

// GetByResource gets audit entries for a specific resource
func (r *Repository) GetByResource(ctx context.Context, resourceType string, resourceID types.ID, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY sequence DESC
		LIMIT $3`, entryColumns)

	rows, err := r.pool.Query(ctx, query, resourceType, resourceID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get audit entries by resource")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// VerifyChain walks the most recent entries oldest-first and checks
// both each entry's own hash and its link to the previous one.
func (r *Repository) VerifyChain(ctx context.Context, limit int) (*VerifyResult, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT %s FROM audit_entries
			ORDER BY sequence DESC
			LIMIT $1
		) recent
		ORDER BY sequence ASC`, entryColumns, entryColumns)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit chain")
	}
	defer rows.Close()

	result := &VerifyResult{Valid: true}
	var prevHash string
	first := true

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}

		if !entry.VerifyHash() || (!first && entry.PrevHash != prevHash) {
			result.Valid = false
			result.BrokenAt = &entry.Sequence
			result.BrokenEntry = &entry.ID
			break
		}

		prevHash = entry.Hash
		first = false
		result.Checked++
	}

	result.CheckedAt = time.Now().UTC()
	return result, nil
}

// Count returns the total number of audit entries
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count audit entries")
	}
	return count, nil
}
