package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/types"
)

// Repository provides database operations for user profiles.
type Repository struct {
	pool     *pgxpool.Pool
	recorder *audit.Recorder
}

// NewRepository creates a new user repository
func NewRepository(pool *pgxpool.Pool, recorder *audit.Recorder) *Repository {
	return &Repository{pool: pool, recorder: recorder}
}

const profileColumns = `
	id, full_name, username, email, phone, role, is_verified, company_id,
	created_at, updated_at, last_login_at, verified_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(
		&p.ID, &p.FullName, &p.Username, &p.Email, &p.Phone, &p.Role, &p.IsVerified, &p.CompanyID,
		&p.CreatedAt, &p.UpdatedAt, &p.LastLoginAt, &p.VerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a profile with its password hash and records the
// sign-up in the audit trail within the same transaction.
func (r *Repository) Create(ctx context.Context, profile *Profile, passwordHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO users (
			id, full_name, username, email, phone, role, is_verified, company_id, password_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, query,
		profile.ID, profile.FullName, profile.Username, profile.Email, profile.Phone,
		profile.Role, profile.IsVerified, profile.CompanyID, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("a user with this email or username already exists")
		}
		return errors.Wrap(err, "failed to create user")
	}

	entry := audit.NewEntry(
		audit.Actor{ID: profile.ID, Name: profile.FullName, Role: string(profile.Role)},
		audit.ActionSignUp,
		fmt.Sprintf("Account created for %s", profile.Email),
		"user",
		&profile.ID,
		map[string]any{"role": profile.Role, "username": profile.Username},
	)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a profile by identity UID
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, profileColumns)

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	return profile, nil
}

// GetByEmail retrieves a profile by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, profileColumns)

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, email))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user by email")
	}
	return profile, nil
}

// RoleOf returns the role field of a profile. Implements the role
// resolver's profile source.
func (r *Repository) RoleOf(ctx context.Context, userID types.ID) (auth.Role, error) {
	var role auth.Role
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err == pgx.ErrNoRows {
		return "", errors.NotFound("user", userID.String())
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve role")
	}
	return role, nil
}

// Credentials returns the UID and password hash for an email.
func (r *Repository) Credentials(ctx context.Context, email string) (types.ID, string, error) {
	var id types.ID
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	if err == pgx.ErrNoRows {
		return "", "", errors.NotFound("user", email)
	}
	if err != nil {
		return "", "", errors.Wrap(err, "failed to get credentials")
	}
	return id, hash, nil
}

// List lists profiles with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Profile, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, *filter.Role)
		argNum++
	}

	if filter.CompanyID != nil {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", argNum))
		args = append(args, *filter.CompanyID)
		argNum++
	}

	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("is_verified = $%d", argNum))
		args = append(args, *filter.Verified)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d OR username ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count users")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM users
		%s
		ORDER BY full_name
		LIMIT $%d OFFSET $%d`, profileColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan user")
		}
		profiles = append(profiles, *p)
	}

	return profiles, total, nil
}

// Update updates the mutable contact fields of a profile
func (r *Repository) Update(ctx context.Context, actor audit.Actor, profile *Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE users SET full_name = $2, phone = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := tx.Exec(ctx, query, profile.ID, profile.FullName, profile.Phone)
	if err != nil {
		return errors.Wrap(err, "failed to update user")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user", profile.ID.String())
	}

	entry := audit.NewEntry(actor, audit.ActionUserUpdated,
		fmt.Sprintf("Updated profile of %s", profile.Email),
		"user", &profile.ID, nil)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AssignRole sets the role and company linkage of a profile and
// records the assignment, all in one transaction.
func (r *Repository) AssignRole(ctx context.Context, actor audit.Actor, userID types.ID, role auth.Role, companyID *types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE users SET role = $2, company_id = $3, updated_at = NOW()
		WHERE id = $1`, userID, role, companyID)
	if err != nil {
		return errors.Wrap(err, "failed to assign role")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user", userID.String())
	}

	changes := map[string]any{"role": role}
	if companyID != nil {
		changes["company_id"] = companyID.String()
	}

	entry := audit.NewEntry(actor, audit.ActionUserRoleAssigned,
		fmt.Sprintf("Assigned role %s to user %s", role, userID),
		"user", &userID, changes)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Unassign clears the company linkage and resets the role to
// civilian. Profiles are never hard-deleted by assignment flows.
func (r *Repository) Unassign(ctx context.Context, actor audit.Actor, userID types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE users SET role = $2, company_id = NULL, updated_at = NOW()
		WHERE id = $1`, userID, auth.RoleCivilian)
	if err != nil {
		return errors.Wrap(err, "failed to unassign user")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user", userID.String())
	}

	entry := audit.NewEntry(actor, audit.ActionUserUnassigned,
		fmt.Sprintf("Unassigned user %s from company", userID),
		"user", &userID, nil)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Ban locks an account out of every authenticated route.
func (r *Repository) Ban(ctx context.Context, actor audit.Actor, userID types.ID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE users SET role = $2, company_id = NULL, updated_at = NOW()
		WHERE id = $1`, userID, auth.RoleBanned)
	if err != nil {
		return errors.Wrap(err, "failed to ban user")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user", userID.String())
	}

	entry := audit.NewEntry(actor, audit.ActionUserBanned,
		fmt.Sprintf("Banned user %s: %s", userID, reason),
		"user", &userID, map[string]any{"reason": reason})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SetVerified flips the verification flag.
func (r *Repository) SetVerified(ctx context.Context, actor audit.Actor, userID types.ID, verified bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var verifiedAt *time.Time
	if verified {
		now := time.Now().UTC()
		verifiedAt = &now
	}

	result, err := tx.Exec(ctx, `
		UPDATE users SET is_verified = $2, verified_at = $3, updated_at = NOW()
		WHERE id = $1`, userID, verified, verifiedAt)
	if err != nil {
		return errors.Wrap(err, "failed to set verification")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user", userID.String())
	}

	entry := audit.NewEntry(actor, audit.ActionUserVerified,
		fmt.Sprintf("Set verification of user %s to %t", userID, verified),
		"user", &userID, map[string]any{"is_verified": verified})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecordLogin stamps the last-login time. Not audited transactionally;
// sign-in bookkeeping is best-effort.
func (r *Repository) RecordLogin(ctx context.Context, userID types.ID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return errors.Wrap(err, "failed to record login")
	}
	return nil
}
