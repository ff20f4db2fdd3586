package app

import (
	"context"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/domain/store"
	"campusdrive/internal/policy"
)

// loadOpenDrive loads the drive and refuses to go on once it is locked. Every mutating
// operation calls it inside its own transaction, after the row lock is taken.
func loadOpenDrive(ctx context.Context, repos store.Repositories, driveID common.UUID) (*drive.Drive, error) {
	d, err := repos.Drives().GetByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if d.IsLocked {
		return nil, invalidState(ReasonDriveLocked, "drive is locked")
	}
	return d, nil
}

func loadStages(ctx context.Context, repos store.Repositories, driveID common.UUID) ([]drive.Stage, error) {
	stages, err := repos.Stages().ListByDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, invalidState(ReasonStagesNotInitialized, "drive stages are not initialized")
	}
	return stages, nil
}

// requireActiveStage checks that the drive sits in stage and that the stage row is ACTIVE.
func requireActiveStage(ctx context.Context, repos store.Repositories, d *drive.Drive, stage drive.StageName) error {
	if d.CurrentStage != stage {
		return invalidState(ReasonStageMismatch, "drive is in stage "+string(d.CurrentStage)+", expected "+string(stage))
	}
	stages, err := loadStages(ctx, repos, d.ID)
	if err != nil {
		return err
	}
	row, ok := drive.FindStage(stages, stage)
	if !ok || row.Status != drive.StageStatusActive {
		return invalidState(ReasonStageMismatch, "stage "+string(stage)+" is not active")
	}
	return nil
}

func loadAcceptedCollege(ctx context.Context, repos store.Repositories, driveID, collegeID common.UUID) (*drive.College, error) {
	dc, err := repos.Colleges().Get(ctx, driveID, collegeID)
	if err != nil {
		return nil, err
	}
	if !dc.Accepted() {
		return nil, invalidState(ReasonInvitationNotAccepted, "college has not accepted the drive invitation")
	}
	return dc, nil
}

// authorizeRead resolves the read capability, narrowing to one college when collegeID is set.
// College actors without an explicit college are scoped to their own.
func authorizeRead(ctx context.Context, repos store.Repositories, a actor.Actor, d *drive.Drive, collegeID common.UUID) (common.UUID, error) {
	if collegeID.IsZero() && a.Role == actor.RoleCollege {
		collegeID = a.CollegeID
	}
	if collegeID.IsZero() {
		return "", policy.For(a).CanRead(*d, nil)
	}
	dc, err := repos.Colleges().Get(ctx, d.ID, collegeID)
	if err != nil {
		return "", err
	}
	return collegeID, policy.For(a).CanRead(*d, dc)
}

func dedupeIDs(ids []common.UUID) []common.UUID {
	seen := make(map[common.UUID]struct{}, len(ids))
	out := make([]common.UUID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
