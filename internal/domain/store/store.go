// Package store defines the transactional contract the lifecycle engine runs against.
package store

import (
	"context"

	"campusdrive/internal/domain/application"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/domain/student"
)

type Repositories interface {
	Drives() drive.Repository
	Stages() drive.StageRepository
	Colleges() drive.CollegeRepository
	Applications() application.Repository
	Students() student.Repository
}

// Store serves snapshot reads directly and runs multi-row mutations through WithinTx.
// Repositories handed to fn read Drive, Stage, College and Application rows under a row lock
// held until the transaction ends; fn's error rolls everything back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
