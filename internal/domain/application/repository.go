package application

import (
	"context"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/drive"
)

type StageFilter struct {
	DriveID   common.UUID
	CollegeID common.UUID
	Stage     drive.StageName
	Limit     int
	Offset    int
}

// StatusCount is the number of applications per (college, status) in a drive.
type StatusCount struct {
	CollegeID common.UUID
	Status    Status
	Count     int
}

type Repository interface {
	GetByID(ctx context.Context, id common.UUID) (*Application, error)
	ListByIDs(ctx context.Context, driveID common.UUID, ids []common.UUID) ([]Application, error)
	ListByStudents(ctx context.Context, driveID, collegeID common.UUID, studentIDs []common.UUID) ([]Application, error)
	CountByStage(ctx context.Context, driveID common.UUID, stage drive.StageName) (int, error)
	ListByStage(ctx context.Context, filter StageFilter) ([]Application, int, error)
	CountByStatus(ctx context.Context, driveID common.UUID) ([]StatusCount, error)
	// SaveAll persists status, stage, actor/timestamp fields and the full stage history of each application.
	SaveAll(ctx context.Context, apps []Application) error
}
