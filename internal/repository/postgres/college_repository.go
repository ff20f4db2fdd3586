package postgres

import (
	"context"
	"database/sql"
	"errors"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/drive"
)

const collegeColumns = `id, drive_id, college_id, invitation_status, managed_by, finalized, finalized_at, finalized_by,
	shortlist_submitted, shortlist_submitted_at, shortlisted_count,
	interview_list_submitted, interview_list_submitted_at, interviewed_count, selected_count, created_at, updated_at`

type CollegeRepository struct {
	q    querier
	lock bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollege(row rowScanner) (drive.College, error) {
	var dc drive.College
	var managedBy, finalizedBy sql.NullString
	var finalizedAt, shortlistAt, interviewAt sql.NullTime
	err := row.Scan(&dc.ID, &dc.DriveID, &dc.CollegeID, &dc.InvitationStatus, &managedBy, &dc.Finalized, &finalizedAt, &finalizedBy,
		&dc.ShortlistSubmitted, &shortlistAt, &dc.ShortlistedCount,
		&dc.InterviewListSubmitted, &interviewAt, &dc.InterviewedCount, &dc.SelectedCount, &dc.CreatedAt, &dc.UpdatedAt)
	if err != nil {
		return dc, err
	}
	dc.ManagedBy = drive.ManagedBy(managedBy.String)
	dc.FinalizedBy = common.UUID(finalizedBy.String)
	dc.FinalizedAt = timePtr(finalizedAt)
	dc.ShortlistSubmittedAt = timePtr(shortlistAt)
	dc.InterviewListSubmittedAt = timePtr(interviewAt)
	return dc, nil
}

func (r *CollegeRepository) Get(ctx context.Context, driveID, collegeID common.UUID) (*drive.College, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+collegeColumns+` FROM drive_colleges WHERE drive_id = $1 AND college_id = $2`+forUpdate(r.lock), driveID, collegeID)
	dc, err := scanCollege(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewError(common.CodeNotFound, "college is not part of the drive", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to load drive college", err)
	}
	return &dc, nil
}

func (r *CollegeRepository) Create(ctx context.Context, c drive.College) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO drive_colleges (id, drive_id, college_id, invitation_status, managed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.DriveID, c.CollegeID, c.InvitationStatus, nullString(string(c.ManagedBy)), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if sqlState(err) == sqlStateUniqueViolation {
			return common.NewError(common.CodeInvalidState, "college is already invited to the drive", err).WithReason("already_invited")
		}
		return common.NewError(common.CodeInternal, "failed to create drive college", err)
	}
	return nil
}

func (r *CollegeRepository) Update(ctx context.Context, c drive.College) error {
	_, err := r.q.ExecContext(ctx, `UPDATE drive_colleges SET invitation_status = $1, managed_by = $2, finalized = $3, finalized_at = $4, finalized_by = $5,
		shortlist_submitted = $6, shortlist_submitted_at = $7, shortlisted_count = $8,
		interview_list_submitted = $9, interview_list_submitted_at = $10, interviewed_count = $11, selected_count = $12, updated_at = $13
		WHERE drive_id = $14 AND college_id = $15`,
		c.InvitationStatus, nullString(string(c.ManagedBy)), c.Finalized, c.FinalizedAt, nullUUID(c.FinalizedBy),
		c.ShortlistSubmitted, c.ShortlistSubmittedAt, c.ShortlistedCount,
		c.InterviewListSubmitted, c.InterviewListSubmittedAt, c.InterviewedCount, c.SelectedCount, c.UpdatedAt,
		c.DriveID, c.CollegeID)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to update drive college", err)
	}
	return nil
}

func (r *CollegeRepository) ListByDrive(ctx context.Context, driveID common.UUID) ([]drive.College, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+collegeColumns+` FROM drive_colleges WHERE drive_id = $1 ORDER BY college_id`, driveID)
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list drive colleges", err)
	}
	defer rows.Close()
	var items []drive.College
	for rows.Next() {
		dc, err := scanCollege(rows)
		if err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan drive college", err)
		}
		items = append(items, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to list drive colleges", err)
	}
	return items, nil
}

func (r *CollegeRepository) CountOpen(ctx context.Context, driveID common.UUID) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM drive_colleges WHERE drive_id = $1 AND invitation_status = $2 AND finalized = FALSE`,
		driveID, drive.InvitationAccepted).Scan(&count)
	if err != nil {
		return 0, common.NewError(common.CodeInternal, "failed to count open colleges", err)
	}
	return count, nil
}
