package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/domain/application"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/domain/store"
	"campusdrive/internal/metrics"
	"campusdrive/internal/policy"
)

type StageService struct {
	store   store.Store
	logger  logrus.FieldLogger
	metrics *metrics.Collector
	clock   func() time.Time
}

func NewStageService(st store.Store, logger logrus.FieldLogger, collector *metrics.Collector) *StageService {
	return &StageService{store: st, logger: logger, metrics: collector, clock: utcNow}
}

type StageResult struct {
	Stage       drive.Stage `json:"stage"`
	DriveLocked bool        `json:"drive_locked"`
}

// InitializeStages is called by drive creation; the caller has already been authorized.
func (s *StageService) InitializeStages(ctx context.Context, driveID common.UUID) ([]drive.Stage, error) {
	return s.initialize(ctx, driveID, nil)
}

// InitializeStagesAs initializes stages on behalf of a, who needs stage authority over the drive.
func (s *StageService) InitializeStagesAs(ctx context.Context, a actor.Actor, driveID common.UUID) ([]drive.Stage, error) {
	return s.initialize(ctx, driveID, &a)
}

func (s *StageService) initialize(ctx context.Context, driveID common.UUID, a *actor.Actor) ([]drive.Stage, error) {
	var stages []drive.Stage
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		d, err := loadOpenDrive(ctx, tx, driveID)
		if err != nil {
			return err
		}
		if a != nil {
			if err := policy.For(*a).CanAdvanceStage(*d); err != nil {
				return err
			}
		}
		existing, err := tx.Stages().ListByDrive(ctx, driveID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return invalidState(ReasonAlreadyInitialized, "drive stages already initialized")
		}
		now := s.clock()
		stages = drive.NewStages(driveID, now)
		if err := tx.Stages().CreateAll(ctx, stages); err != nil {
			return err
		}
		d.CurrentStage = drive.StageApplications
		if d.Status == "" {
			d.Status = drive.StatusActive
		}
		d.UpdatedAt = now
		return tx.Drives().Update(ctx, *d)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"drive_id": driveID, "operation": "initialize_stages"}).Info("drive stages initialized")
	return stages, nil
}

// ActivateNextStage opens the stage after the drive's current one, which must be COMPLETED.
func (s *StageService) ActivateNextStage(ctx context.Context, a actor.Actor, driveID common.UUID) (*drive.Stage, error) {
	var activated drive.Stage
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		d, err := loadOpenDrive(ctx, tx, driveID)
		if err != nil {
			return err
		}
		if err := policy.For(a).CanAdvanceStage(*d); err != nil {
			return err
		}
		stages, err := loadStages(ctx, tx, driveID)
		if err != nil {
			return err
		}
		current, ok := drive.FindStage(stages, d.CurrentStage)
		if !ok {
			return invalidState(ReasonStagesNotInitialized, "current stage row is missing")
		}
		if current.Status != drive.StageStatusCompleted {
			return invalidState(ReasonStageNotComplete, "stage "+string(current.Name)+" is not completed")
		}
		nextName, ok := current.Name.Next()
		if !ok {
			return invalidState(ReasonNoNextStage, "drive is already in the final stage")
		}
		next, ok := drive.FindStage(stages, nextName)
		if !ok || next.Status != drive.StageStatusPending {
			return invalidState(ReasonStageMismatch, "stage "+string(nextName)+" cannot be activated")
		}
		now := s.clock()
		next.Status = drive.StageStatusActive
		if next.StartedAt == nil {
			started := now
			next.StartedAt = &started
		}
		if err := tx.Stages().Update(ctx, *next); err != nil {
			return err
		}
		d.CurrentStage = next.Name
		d.UpdatedAt = now
		if err := tx.Drives().Update(ctx, *d); err != nil {
			return err
		}
		activated = *next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"drive_id":  driveID,
		"actor_id":  a.ID,
		"role":      a.Role,
		"operation": "activate_next_stage",
		"stage":     activated.Name,
	}).Info("stage activated")
	return &activated, nil
}

// CompleteCurrentStage closes the drive's active stage. Completing FINAL locks the drive
// in the same transaction.
func (s *StageService) CompleteCurrentStage(ctx context.Context, a actor.Actor, driveID common.UUID) (*StageResult, error) {
	var result StageResult
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		d, err := loadOpenDrive(ctx, tx, driveID)
		if err != nil {
			return err
		}
		if err := policy.For(a).CanAdvanceStage(*d); err != nil {
			return err
		}
		stages, err := loadStages(ctx, tx, driveID)
		if err != nil {
			return err
		}
		current, ok := drive.FindStage(stages, d.CurrentStage)
		if !ok {
			return invalidState(ReasonStagesNotInitialized, "current stage row is missing")
		}
		switch current.Status {
		case drive.StageStatusCompleted:
			return invalidState(ReasonStageAlreadyCompleted, "stage "+string(current.Name)+" is already completed")
		case drive.StageStatusActive:
		default:
			return invalidState(ReasonStageNotActive, "stage "+string(current.Name)+" is not active")
		}
		if current.Name != drive.StageApplications {
			count, err := tx.Applications().CountByStage(ctx, driveID, current.Name)
			if err != nil {
				return err
			}
			if count == 0 {
				return invalidState(ReasonNoApplicationsProcessed, "no applications reached stage "+string(current.Name))
			}
		}
		now := s.clock()
		completed := now
		current.Status = drive.StageStatusCompleted
		current.CompletedAt = &completed
		if err := tx.Stages().Update(ctx, *current); err != nil {
			return err
		}
		if current.Name == drive.StageFinal {
			d.Lock(now)
			if err := tx.Drives().Update(ctx, *d); err != nil {
				return err
			}
			result.DriveLocked = true
		}
		result.Stage = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	entry := s.logger.WithFields(logrus.Fields{
		"drive_id":  driveID,
		"actor_id":  a.ID,
		"role":      a.Role,
		"operation": "complete_current_stage",
		"stage":     result.Stage.Name,
	})
	entry.Info("stage completed")
	if result.DriveLocked {
		s.metrics.DriveLocked("final_stage_completed")
		entry.WithField("reason", "final_stage_completed").Info("drive locked")
	}
	return &result, nil
}

// ProgressApplicationsToStage moves a whole batch of one college's applications into the
// drive's active stage. A single ineligible application rejects the batch untouched.
func (s *StageService) ProgressApplicationsToStage(ctx context.Context, a actor.Actor, driveID, collegeID common.UUID, applicationIDs []common.UUID, target drive.StageName) (int, error) {
	ids := dedupeIDs(applicationIDs)
	if len(ids) == 0 {
		return 0, invalidInput(ReasonEmptyBatch, "at least one application id is required")
	}
	if !target.Valid() {
		return 0, invalidInput(ReasonInvalidTargetStage, "unknown target stage")
	}
	previous, ok := target.Previous()
	if !ok {
		return 0, invalidInput(ReasonInvalidTargetStage, "applications cannot be progressed into "+string(target))
	}
	status, _ := application.StatusForStage(target)

	updated := 0
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		d, err := loadOpenDrive(ctx, tx, driveID)
		if err != nil {
			return err
		}
		if err := requireActiveStage(ctx, tx, d, target); err != nil {
			return err
		}
		dc, err := loadAcceptedCollege(ctx, tx, driveID, collegeID)
		if err != nil {
			return err
		}
		if err := policy.For(a).CanSubmitPhase(*dc); err != nil {
			return err
		}
		if dc.Finalized {
			return invalidState(ReasonFlowClosed, "college selection flow is closed")
		}
		apps, err := tx.Applications().ListByIDs(ctx, driveID, ids)
		if err != nil {
			return err
		}
		byID := make(map[common.UUID]application.Application, len(apps))
		for _, app := range apps {
			byID[app.ID] = app
		}
		now := s.clock()
		batch := make([]application.Application, 0, len(ids))
		var mismatched []string
		for _, id := range ids {
			app, ok := byID[id]
			if !ok || app.CollegeID != collegeID || app.IsRejected() || app.CurrentStage != previous {
				mismatched = append(mismatched, id.String())
				continue
			}
			if err := app.Advance(application.KindProgress, status, target, a.ID, now); err != nil {
				mismatched = append(mismatched, id.String())
				continue
			}
			batch = append(batch, app)
		}
		if len(mismatched) > 0 {
			return partialMatch(ReasonPartialMatchRejected, "applications are not eligible for "+string(target), mismatched)
		}
		if err := tx.Applications().SaveAll(ctx, batch); err != nil {
			return err
		}
		updated = len(batch)
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return 0, err
	}
	s.metrics.Transitions("progress", updated)
	s.logger.WithFields(logrus.Fields{
		"drive_id":   driveID,
		"college_id": collegeID,
		"actor_id":   a.ID,
		"role":       a.Role,
		"operation":  "progress_applications",
		"stage":      target,
		"count":      updated,
	}).Info("applications progressed")
	return updated, nil
}

// RejectApplications rejects a batch of applications by id without moving their stage.
func (s *StageService) RejectApplications(ctx context.Context, a actor.Actor, driveID common.UUID, applicationIDs []common.UUID) (int, error) {
	ids := dedupeIDs(applicationIDs)
	if len(ids) == 0 {
		return 0, invalidInput(ReasonEmptyBatch, "at least one application id is required")
	}
	rejected := 0
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		d, err := loadOpenDrive(ctx, tx, driveID)
		if err != nil {
			return err
		}
		if err := policy.For(a).CanReject(*d); err != nil {
			return err
		}
		apps, err := tx.Applications().ListByIDs(ctx, driveID, ids)
		if err != nil {
			return err
		}
		byID := make(map[common.UUID]application.Application, len(apps))
		for _, app := range apps {
			byID[app.ID] = app
		}
		now := s.clock()
		batch := make([]application.Application, 0, len(ids))
		var ineligible []string
		for _, id := range ids {
			app, ok := byID[id]
			if !ok {
				ineligible = append(ineligible, id.String())
				continue
			}
			if err := app.Reject(application.KindReject, a.ID, now); err != nil {
				ineligible = append(ineligible, id.String())
				continue
			}
			batch = append(batch, app)
		}
		if len(ineligible) > 0 {
			return partialMatch(ReasonPartialMatchRejected, "applications cannot be rejected", ineligible)
		}
		if err := tx.Applications().SaveAll(ctx, batch); err != nil {
			return err
		}
		rejected = len(batch)
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return 0, err
	}
	s.metrics.Transitions("reject", rejected)
	s.logger.WithFields(logrus.Fields{
		"drive_id":  driveID,
		"actor_id":  a.ID,
		"role":      a.Role,
		"operation": "reject_applications",
		"count":     rejected,
	}).Info("applications rejected")
	return rejected, nil
}

func (s *StageService) GetStages(ctx context.Context, a actor.Actor, driveID, collegeID common.UUID) ([]drive.Stage, error) {
	d, err := s.store.Drives().GetByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeRead(ctx, s.store, a, d, collegeID); err != nil {
		return nil, err
	}
	return loadStages(ctx, s.store, driveID)
}

func (s *StageService) recordRejection(err error) {
	if common.Is(err, common.CodePartialMatch) {
		s.metrics.BatchRejected(reasonOf(err))
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
