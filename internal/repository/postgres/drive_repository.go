package postgres

import (
	"context"
	"database/sql"
	"errors"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/drive"
)

type DriveRepository struct {
	q    querier
	lock bool
}

func (r *DriveRepository) GetByID(ctx context.Context, id common.UUID) (*drive.Drive, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, owner_org_id, title, status, current_stage, is_locked, locked_at, created_at, updated_at
		FROM drives WHERE id = $1`+forUpdate(r.lock), id)
	var d drive.Drive
	var lockedAt sql.NullTime
	if err := row.Scan(&d.ID, &d.OwnerOrgID, &d.Title, &d.Status, &d.CurrentStage, &d.IsLocked, &lockedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "drive not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load drive", err)
	}
	d.LockedAt = timePtr(lockedAt)
	return &d, nil
}

func (r *DriveRepository) Update(ctx context.Context, d drive.Drive) error {
	_, err := r.q.ExecContext(ctx, `UPDATE drives SET status = $1, current_stage = $2, is_locked = $3, locked_at = $4, updated_at = $5 WHERE id = $6`,
		d.Status, d.CurrentStage, d.IsLocked, d.LockedAt, d.UpdatedAt, d.ID)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to update drive", err)
	}
	return nil
}

type StageRepository struct {
	q    querier
	lock bool
}

func (r *StageRepository) ListByDrive(ctx context.Context, driveID common.UUID) ([]drive.Stage, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, drive_id, name, stage_order, status, started_at, completed_at
		FROM drive_stages WHERE drive_id = $1 ORDER BY stage_order`+forUpdate(r.lock), driveID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list stages", err)
	}
	defer rows.Close()
	var items []drive.Stage
	for rows.Next() {
		var stage drive.Stage
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&stage.ID, &stage.DriveID, &stage.Name, &stage.Order, &stage.Status, &startedAt, &completedAt); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan stage", err)
		}
		stage.StartedAt = timePtr(startedAt)
		stage.CompletedAt = timePtr(completedAt)
		items = append(items, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list stages", err)
	}
	return items, nil
}

func (r *StageRepository) CreateAll(ctx context.Context, stages []drive.Stage) error {
	for _, stage := range stages {
		_, err := r.q.ExecContext(ctx, `INSERT INTO drive_stages (id, drive_id, name, stage_order, status, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			stage.ID, stage.DriveID, stage.Name, stage.Order, stage.Status, stage.StartedAt, stage.CompletedAt)
		if err != nil {
			if sqlState(err) == sqlStateUniqueViolation {
				return common.NewError(common.CodeInvalidState, "drive stages already initialized", err).WithReason("already_initialized")
			}
			return common.NewError(common.CodeInternal, "failed to create stage", err)
		}
	}
	return nil
}

func (r *StageRepository) Update(ctx context.Context, stage drive.Stage) error {
	_, err := r.q.ExecContext(ctx, `UPDATE drive_stages SET status = $1, started_at = $2, completed_at = $3 WHERE id = $4`,
		stage.Status, stage.StartedAt, stage.CompletedAt, stage.ID)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to update stage", err)
	}
	return nil
}
