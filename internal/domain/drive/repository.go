package drive

import (
	"context"

	"campusdrive/internal/common"
)

type Repository interface {
	GetByID(ctx context.Context, id common.UUID) (*Drive, error)
	Update(ctx context.Context, d Drive) error
}

type StageRepository interface {
	ListByDrive(ctx context.Context, driveID common.UUID) ([]Stage, error)
	CreateAll(ctx context.Context, stages []Stage) error
	Update(ctx context.Context, stage Stage) error
}

type CollegeRepository interface {
	Get(ctx context.Context, driveID, collegeID common.UUID) (*College, error)
	Create(ctx context.Context, c College) error
	Update(ctx context.Context, c College) error
	ListByDrive(ctx context.Context, driveID common.UUID) ([]College, error)
	// CountOpen counts accepted colleges that have not been finalized.
	CountOpen(ctx context.Context, driveID common.UUID) (int, error)
}
