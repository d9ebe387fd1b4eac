package tow

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

// Repository provides database operations for tow requests.
type Repository struct {
	pool     *pgxpool.Pool
	recorder *audit.Recorder
}

// NewRepository creates a new tow repository
func NewRepository(pool *pgxpool.Pool, recorder *audit.Recorder) *Repository {
	return &Repository{pool: pool, recorder: recorder}
}

const requestColumns = `
	id, requester_id, vehicle_type,
	location_address, location_city, location_lat, location_lng,
	status, operator_id, company_id, eta_minutes, notes,
	created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	req := &Request{}
	var lat, lng *float64
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.VehicleType,
		&req.Location.Address, &req.Location.City, &lat, &lng,
		&req.Status, &req.OperatorID, &req.CompanyID, &req.ETAMinutes, &req.Notes,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil {
		req.Location.Lat = *lat
	}
	if lng != nil {
		req.Location.Lng = *lng
	}
	return req, nil
}

// Create files a tow request and records it in the same transaction.
func (r *Repository) Create(ctx context.Context, actor audit.Actor, req *Request) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO tow_requests (
			id, requester_id, vehicle_type,
			location_address, location_city, location_lat, location_lng,
			status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, query,
		req.ID, req.RequesterID, req.VehicleType,
		req.Location.Address, req.Location.City, req.Location.Lat, req.Location.Lng,
		StatusRequested, req.Notes,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create tow request")
	}

	entry := audit.NewEntry(actor, audit.ActionTowRequested,
		fmt.Sprintf("Requested a tow for a %s", req.VehicleType),
		"tow_request", &req.ID, map[string]any{"vehicle_type": req.VehicleType})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit tow request")
	}

	metrics.TowRequestCreated(req.VehicleType)
	return nil
}

// GetByID retrieves a tow request
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM tow_requests WHERE id = $1`, requestColumns)

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("tow request", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tow request")
	}
	return req, nil
}

// List lists tow requests with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.RequesterID != nil {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", argNum))
		args = append(args, *filter.RequesterID)
		argNum++
	}

	if filter.CompanyID != nil {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", argNum))
		args = append(args, *filter.CompanyID)
		argNum++
	}

	if filter.OperatorID != nil {
		conditions = append(conditions, fmt.Sprintf("operator_id = $%d", argNum))
		args = append(args, *filter.OperatorID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Open {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, StatusRequested)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tow_requests %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count tow requests")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s FROM tow_requests
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, requestColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list tow requests")
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan tow request")
		}
		requests = append(requests, *req)
	}

	return requests, total, nil
}

// Accept matches an open request to an operator and their company.
// The row lock makes two operators racing for the same request
// serialize; the loser gets a conflict.
func (r *Repository) Accept(ctx context.Context, actor audit.Actor, id, operatorID, companyID types.ID, etaMinutes int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM tow_requests WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return errors.NotFound("tow request", id.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock tow request")
	}

	if current != StatusRequested {
		return errors.Conflict("tow request has already been taken")
	}

	_, err = tx.Exec(ctx, `
		UPDATE tow_requests
		SET status = $2, operator_id = $3, company_id = $4, eta_minutes = $5, updated_at = NOW()
		WHERE id = $1`, id, StatusAccepted, operatorID, companyID, etaMinutes)
	if err != nil {
		return errors.Wrap(err, "failed to accept tow request")
	}

	entry := audit.NewEntry(actor, audit.ActionTowAccepted,
		fmt.Sprintf("Accepted tow request %s with ETA %d min", id, etaMinutes),
		"tow_request", &id, map[string]any{
			"operator_id": operatorID.String(),
			"company_id":  companyID.String(),
			"eta_minutes": etaMinutes,
		})
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit acceptance")
	}

	metrics.TowRequestMatched()
	return nil
}

// UpdateStatus moves an accepted request forward.
func (r *Repository) UpdateStatus(ctx context.Context, actor audit.Actor, id types.ID, status Status, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM tow_requests WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return errors.NotFound("tow request", id.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock tow request")
	}

	if current.Terminal() {
		return errors.Conflict(fmt.Sprintf("tow request is already %s", current))
	}

	_, err = tx.Exec(ctx, `UPDATE tow_requests SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "failed to update tow request")
	}

	changes := map[string]any{"from": current, "to": status}
	if note != "" {
		changes["note"] = note
	}

	entry := audit.NewEntry(actor, audit.ActionTowUpdated,
		fmt.Sprintf("Moved tow request %s from %s to %s", id, current, status),
		"tow_request", &id, changes)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Cancel withdraws a request that has not been resolved yet.
func (r *Repository) Cancel(ctx context.Context, actor audit.Actor, id types.ID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM tow_requests WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return errors.NotFound("tow request", id.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock tow request")
	}

	if current.Terminal() {
		return errors.Conflict("tow request can no longer be cancelled")
	}

	_, err = tx.Exec(ctx, `UPDATE tow_requests SET status = $2, updated_at = NOW() WHERE id = $1`, id, StatusCancelled)
	if err != nil {
		return errors.Wrap(err, "failed to cancel tow request")
	}

	changes := map[string]any{}
	if reason != "" {
		changes["reason"] = reason
	}

	entry := audit.NewEntry(actor, audit.ActionTowCancelled,
		fmt.Sprintf("Cancelled tow request %s", id),
		"tow_request", &id, changes)
	if err := r.recorder.Record(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
