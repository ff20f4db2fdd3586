package postgres

import (
	"context"

	"github.com/lib/pq"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/student"
)

type StudentRepository struct {
	q querier
}

func (r *StudentRepository) FindByEmails(ctx context.Context, collegeID common.UUID, emails []string) ([]student.Student, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := r.q.QueryContext(ctx, `SELECT id, college_id, lower(email), name FROM students WHERE college_id = $1 AND lower(email) = ANY($2::text[])`,
		collegeID, pq.Array(emails))
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to find students", err)
	}
	defer rows.Close()
	var items []student.Student
	for rows.Next() {
		var st student.Student
		if err := rows.Scan(&st.ID, &st.CollegeID, &st.Email, &st.Name); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan student", err)
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to find students", err)
	}
	return items, nil
}

func (r *StudentRepository) LinkedToDrive(ctx context.Context, driveID, collegeID common.UUID, studentIDs []common.UUID) (map[common.UUID]bool, error) {
	linked := make(map[common.UUID]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return linked, nil
	}
	rows, err := r.q.QueryContext(ctx, `SELECT student_id FROM drive_students WHERE drive_id = $1 AND college_id = $2 AND student_id = ANY($3::uuid[])`,
		driveID, collegeID, pq.Array(common.UUIDStrings(studentIDs)))
	if err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to load drive links", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id common.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewError(common.CodeInternal, "failed to scan drive link", err)
		}
		linked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.CodeInternal, "failed to load drive links", err)
	}
	return linked, nil
}
