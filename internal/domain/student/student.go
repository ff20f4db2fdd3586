package student

import (
	"context"

	"campusdrive/internal/common"
)

type Student struct {
	ID        common.UUID `json:"id"`
	CollegeID common.UUID `json:"college_id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
}

type Repository interface {
	// FindByEmails resolves lowercased emails to students of one college.
	FindByEmails(ctx context.Context, collegeID common.UUID, emails []string) ([]Student, error)
	// LinkedToDrive returns the subset of studentIDs linked to the drive through the college.
	LinkedToDrive(ctx context.Context, driveID, collegeID common.UUID, studentIDs []common.UUID) (map[common.UUID]bool, error)
}
