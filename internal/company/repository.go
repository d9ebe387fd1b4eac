package company

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/errors"
	"github.com/linkaid/platform/internal/shared/types"
)

// Repository provides database operations for companies and fleets.
type Repository struct {
	pool     *pgxpool.Pool
	recorder *audit.Recorder
}

// NewRepository creates a new company repository
func NewRepository(pool *pgxpool.Pool, recorder *audit.Recorder) *Repository {
	return &Repository{pool: pool, recorder: recorder}
}

const companyColumns = `
	id, name, region, admin_user_id, contact_email, contact_phone,
	is_active, is_verified, created_at, updated_at`

func scanCompany(row pgx.Row, kind Kind) (*Company, error) {
	c := &Company{Kind: kind}
	err := row.Scan(
		&c.ID, &c.Name, &c.Region, &c.AdminUserID, &c.ContactEmail, &c.ContactPhone,
		&c.IsActive, &c.IsVerified, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// adminRole maps a directory to the role its admin account carries.
func adminRole(kind Kind) auth.Role {
	if kind == KindInsurance {
		return auth.RoleInsurer
	}
	return auth.RoleTowingCompany
}

// Create registers a company and, in the same transaction, promotes
// the admin account to the matching company role and links it.
func (r *Repository) Create(ctx context.Context, actor audit.Actor, company *Company, adminEmail string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var adminID types.ID
	var adminRoleCurrent auth.Role
	err = tx.QueryRow(ctx, `SELECT id, role FROM users WHERE email = $1`, adminEmail).Scan(&adminID, &adminRoleCurrent)
	if err == pgx.ErrNoRows {
		return errors.NotFound("user", adminEmail)
	}
	if err != nil {
		return errors.Wrap(err, "failed to look up admin account")
	}
	if adminRoleCurrent != auth.RoleCivilian {
		return errors.Conflict("admin account already holds a role")
	}
	company.AdminUserID = adminID

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, name, region, admin_user_id, contact_email, contact_phone, is_active, is_verified
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE)`, company.Kind.table())

	_, err = tx.Exec(ctx, query,
		company.ID, company.Name, company.Region, company.AdminUserID,
		company.ContactEmail, company.ContactPhone,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("a company with this ID already exists")
		}
		return errors.Wrap(err, "failed to create company")
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET role = $2, company_id = $3, updated_at = NOW()
		WHERE id = $1`, adminID, adminRole(company.Kind), company.ID)
	if err != nil {
		return errors.Wrap(err, "failed to promote admin account")
	}

	entry := audit.NewEntry(actor, audit.ActionCompanyCreated,
		fmt.Sprintf("Registered %s company %s", company.Kind, company.Name),
		"company", &company.ID,
		map[string]any{
			"kind":          company.Kind,
			"name":          company.Name,
			"admin_user_id": adminID.String(),
		})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a company from one directory
func (r *Repository) GetByID(ctx context.Context, kind Kind, id types.ID) (*Company, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, companyColumns, kind.table())

	company, err := scanCompany(r.pool.QueryRow(ctx, query, id), kind)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("company", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get company")
	}
	return company, nil
}

// List lists companies of one directory with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Company, int, error) {
	kind := filter.Kind
	if !kind.Valid() {
		kind = KindTowing
	}

	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("region = $%d", argNum))
		args = append(args, filter.Region)
		argNum++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argNum))
		args = append(args, *filter.Active)
		argNum++
	}

	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("is_verified = $%d", argNum))
		args = append(args, *filter.Verified)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", kind.table(), whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count companies")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, companyColumns, kind.table(), whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list companies")
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		c, err := scanCompany(rows, kind)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan company")
		}
		companies = append(companies, *c)
	}

	return companies, total, nil
}

// Update updates the mutable fields of a company
func (r *Repository) Update(ctx context.Context, actor audit.Actor, company *Company) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE %s SET name = $2, region = $3, contact_email = $4, contact_phone = $5, updated_at = NOW()
		WHERE id = $1`, company.Kind.table())

	result, err := tx.Exec(ctx, query,
		company.ID, company.Name, company.Region, company.ContactEmail, company.ContactPhone)
	if err != nil {
		return errors.Wrap(err, "failed to update company")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("company", company.ID.String())
	}

	entry := audit.NewEntry(actor, audit.ActionCompanyUpdated,
		fmt.Sprintf("Updated company %s", company.Name),
		"company", &company.ID, nil)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SetVerified flips the verification flag on a company.
func (r *Repository) SetVerified(ctx context.Context, actor audit.Actor, kind Kind, id types.ID, verified bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE %s SET is_verified = $2, updated_at = NOW() WHERE id = $1`, kind.table())
	result, err := tx.Exec(ctx, query, id, verified)
	if err != nil {
		return errors.Wrap(err, "failed to set company verification")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("company", id.String())
	}

	entry := audit.NewEntry(actor, audit.ActionCompanyUpdated,
		fmt.Sprintf("Set verification of company %s to %t", id, verified),
		"company", &id, map[string]any{"is_verified": verified})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SetActive activates or deactivates a company.
func (r *Repository) SetActive(ctx context.Context, actor audit.Actor, kind Kind, id types.ID, active bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE %s SET is_active = $2, updated_at = NOW() WHERE id = $1`, kind.table())
	result, err := tx.Exec(ctx, query, id, active)
	if err != nil {
		return errors.Wrap(err, "failed to set company status")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("company", id.String())
	}

	entry := audit.NewEntry(actor, audit.ActionCompanyUpdated,
		fmt.Sprintf("Set active flag of company %s to %t", id, active),
		"company", &id, map[string]any{"is_active": active})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// --- Fleet ---

const vehicleColumns = `
	id, company_id, plate, vehicle_type, capacity_tons, status, operator_id,
	created_at, updated_at`

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	v := &Vehicle{}
	err := row.Scan(
		&v.ID, &v.CompanyID, &v.Plate, &v.VehicleType, &v.CapacityTons, &v.Status, &v.OperatorID,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// AddVehicle adds a truck to a towing company's fleet.
func (r *Repository) AddVehicle(ctx context.Context, actor audit.Actor, vehicle *Vehicle) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO vehicles (id, company_id, plate, vehicle_type, capacity_tons, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, query,
		vehicle.ID, vehicle.CompanyID, vehicle.Plate, vehicle.VehicleType,
		vehicle.CapacityTons, VehicleAvailable)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("a vehicle with this plate is already on the fleet")
		}
		return errors.Wrap(err, "failed to add vehicle")
	}

	entry := audit.NewEntry(actor, audit.ActionVehicleAdded,
		fmt.Sprintf("Added vehicle %s to fleet", vehicle.Plate),
		"vehicle", &vehicle.ID, map[string]any{"plate": vehicle.Plate, "company_id": vehicle.CompanyID.String()})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListVehicles lists a company's fleet
func (r *Repository) ListVehicles(ctx context.Context, companyID types.ID) ([]Vehicle, error) {
	query := fmt.Sprintf(`SELECT %s FROM vehicles WHERE company_id = $1 ORDER BY plate`, vehicleColumns)

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list vehicles")
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vehicle")
		}
		vehicles = append(vehicles, *v)
	}

	return vehicles, nil
}

// SetVehicleOperator assigns or clears the operator of a vehicle.
func (r *Repository) SetVehicleOperator(ctx context.Context, actor audit.Actor, companyID, vehicleID types.ID, operatorID *types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE vehicles SET operator_id = $3, updated_at = NOW()
		WHERE id = $1 AND company_id = $2`, vehicleID, companyID, operatorID)
	if err != nil {
		return errors.Wrap(err, "failed to set vehicle operator")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("vehicle", vehicleID.String())
	}

	changes := map[string]any{}
	if operatorID != nil {
		changes["operator_id"] = operatorID.String()
	}

	entry := audit.NewEntry(actor, audit.ActionVehicleUpdated,
		fmt.Sprintf("Changed operator of vehicle %s", vehicleID),
		"vehicle", &vehicleID, changes)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RemoveVehicle deletes a truck from the fleet.
func (r *Repository) RemoveVehicle(ctx context.Context, actor audit.Actor, companyID, vehicleID types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		DELETE FROM vehicles WHERE id = $1 AND company_id = $2`, vehicleID, companyID)
	if err != nil {
		return errors.Wrap(err, "failed to remove vehicle")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("vehicle", vehicleID.String())
	}

	entry := audit.NewEntry(actor, audit.ActionVehicleRemoved,
		fmt.Sprintf("Removed vehicle %s from fleet", vehicleID),
		"vehicle", &vehicleID, nil)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
