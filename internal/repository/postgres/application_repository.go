package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/application"
	"campusdrive/internal/domain/drive"
)

const applicationColumns = `id, drive_id, student_id, college_id, status, current_stage, stage_history, applied_at,
	shortlisted_at, shortlisted_by, interviewed_at, interviewed_by, selected_at, selected_by, rejected_at, rejected_by,
	created_at, updated_at`

type ApplicationRepository struct {
	q    querier
	lock bool
}

func scanApplication(row rowScanner, extra ...any) (application.Application, error) {
	var app application.Application
	var history []byte
	var shortlistedAt, interviewedAt, selectedAt, rejectedAt sql.NullTime
	var shortlistedBy, interviewedBy, selectedBy, rejectedBy sql.NullString
	dest := []any{&app.ID, &app.DriveID, &app.StudentID, &app.CollegeID, &app.Status, &app.CurrentStage, &history, &app.AppliedAt,
		&shortlistedAt, &shortlistedBy, &interviewedAt, &interviewedBy, &selectedAt, &selectedBy, &rejectedAt, &rejectedBy,
		&app.CreatedAt, &app.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return app, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &app.StageHistory); err != nil {
			return app, err
		}
	}
	app.ShortlistedAt, app.ShortlistedBy = timePtr(shortlistedAt), common.UUID(shortlistedBy.String)
	app.InterviewedAt, app.InterviewedBy = timePtr(interviewedAt), common.UUID(interviewedBy.String)
	app.SelectedAt, app.SelectedBy = timePtr(selectedAt), common.UUID(selectedBy.String)
	app.RejectedAt, app.RejectedBy = timePtr(rejectedAt), common.UUID(rejectedBy.String)
	return app, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id common.UUID) (*application.Application, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`+forUpdate(r.lock), id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "application not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load application", err)
	}
	return &app, nil
}

// ListByIDs returns the applications of the drive among ids, ordered by id so row locks are
// always taken in the same order.
func (r *ApplicationRepository) ListByIDs(ctx context.Context, driveID common.UUID, ids []common.UUID) ([]application.Application, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications WHERE drive_id = $1 AND id = ANY($2::uuid[]) ORDER BY id`+forUpdate(r.lock),
		driveID, pq.Array(common.UUIDStrings(ids)))
}

func (r *ApplicationRepository) ListByStudents(ctx context.Context, driveID, collegeID common.UUID, studentIDs []common.UUID) ([]application.Application, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications WHERE drive_id = $1 AND college_id = $2 AND student_id = ANY($3::uuid[]) ORDER BY id`+forUpdate(r.lock),
		driveID, collegeID, pq.Array(common.UUIDStrings(studentIDs)))
}

func (r *ApplicationRepository) list(ctx context.Context, query string, args ...any) ([]application.Application, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list applications", err)
	}
	defer rows.Close()
	var items []application.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan application", err)
		}
		items = append(items, app)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list applications", err)
	}
	return items, nil
}

func (r *ApplicationRepository) CountByStage(ctx context.Context, driveID common.UUID, stage drive.StageName) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE drive_id = $1 AND current_stage = $2 AND status <> $3`,
		driveID, stage, application.StatusRejected).Scan(&count)
	if err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to count applications", err)
	}
	return count, nil
}

func (r *ApplicationRepository) ListByStage(ctx context.Context, filter application.StageFilter) ([]application.Application, int, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+applicationColumns+`, COUNT(*) OVER() AS total
		FROM applications
		WHERE drive_id = $1 AND current_stage = $2 AND ($3::uuid IS NULL OR college_id = $3::uuid)
		ORDER BY applied_at, id
		LIMIT $4 OFFSET $5`,
		filter.DriveID, filter.Stage, nullUUID(filter.CollegeID), filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to list applications by stage", err)
	}
	defer rows.Close()
	var items []application.Application
	total := 0
	for rows.Next() {
		app, err := scanApplication(rows, &total)
		if err != nil {
			return nil, 0, common.NewError(common.CodeInternal, "failed to scan application", err)
		}
		items = append(items, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, common.NewError(common.CodeInternal, "failed to list applications by stage", err)
	}
	if len(items) == 0 && filter.Offset > 0 {
		// the window count is empty past the last page
		err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE drive_id = $1 AND current_stage = $2 AND ($3::uuid IS NULL OR college_id = $3::uuid)`,
			filter.DriveID, filter.Stage, nullUUID(filter.CollegeID)).Scan(&total)
		if err != nil {
			return nil, 0, common.NewError(common.CodeInternal, "failed to count applications by stage", err)
		}
	}
	return items, total, nil
}

func (r *ApplicationRepository) CountByStatus(ctx context.Context, driveID common.UUID) ([]application.StatusCount, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT college_id, status, COUNT(*) FROM applications WHERE drive_id = $1 GROUP BY college_id, status ORDER BY college_id, status`, driveID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to count applications by status", err)
	}
	defer rows.Close()
	var items []application.StatusCount
	for rows.Next() {
		var item application.StatusCount
		if err := rows.Scan(&item.CollegeID, &item.Status, &item.Count); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan status count", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to count applications by status", err)
	}
	return items, nil
}

func (r *ApplicationRepository) SaveAll(ctx context.Context, apps []application.Application) error {
	for _, app := range apps {
		history, err := json.Marshal(app.StageHistory)
		if err != nil {
			return common.NewError(common.CodeInternal, "failed to encode stage history", err)
		}
		_, err = r.q.ExecContext(ctx, `UPDATE applications SET status = $1, current_stage = $2, stage_history = $3,
			shortlisted_at = $4, shortlisted_by = $5, interviewed_at = $6, interviewed_by = $7,
			selected_at = $8, selected_by = $9, rejected_at = $10, rejected_by = $11, updated_at = $12
			WHERE id = $13`,
			app.Status, app.CurrentStage, string(history),
			app.ShortlistedAt, nullUUID(app.ShortlistedBy), app.InterviewedAt, nullUUID(app.InterviewedBy),
			app.SelectedAt, nullUUID(app.SelectedBy), app.RejectedAt, nullUUID(app.RejectedBy), app.UpdatedAt,
			app.ID)
		if err != nil {
			return common.NewError(common.CodeInternal, "failed to update application", err)
		}
	}
	return nil
}
