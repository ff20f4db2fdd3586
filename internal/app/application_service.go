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

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ApplicationService struct {
	store   store.Store
	logger  logrus.FieldLogger
	metrics *metrics.Collector
	clock   func() time.Time
}

func NewApplicationService(st store.Store, logger logrus.FieldLogger, collector *metrics.Collector) *ApplicationService {
	return &ApplicationService{store: st, logger: logger, metrics: collector, clock: utcNow}
}

func (s *ApplicationService) Get(ctx context.Context, a actor.Actor, applicationID common.UUID) (*application.Application, error) {
	app, err := s.store.Applications().GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.Drives().GetByID(ctx, app.DriveID)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeRead(ctx, s.store, a, d, app.CollegeID); err != nil {
		return nil, err
	}
	return app, nil
}

// UpdateStatus moves one application through the transition table. A rejection keeps the
// current stage; any other target moves the application into the stage mapped from the status,
// which must be the drive's active stage.
func (s *ApplicationService) UpdateStatus(ctx context.Context, a actor.Actor, applicationID common.UUID, status application.Status) (*application.Application, error) {
	if _, ok := application.StageForStatus(status); !ok {
		return nil, common.NewValidationError("invalid status", map[string]string{"status": "unknown status"})
	}
	// The drive row is locked before the application row, so resolve the drive first.
	snapshot, err := s.store.Applications().GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	var updated application.Application
	err = s.store.WithinTx(ctx, func(tx store.Repositories) error {
		d, err := loadOpenDrive(ctx, tx, snapshot.DriveID)
		if err != nil {
			return err
		}
		if status == application.StatusRejected {
			if err := policy.For(a).CanReject(*d); err != nil {
				return err
			}
		} else {
			target, _ := application.StageForStatus(status)
			if err := requireActiveStage(ctx, tx, d, target); err != nil {
				return err
			}
			dc, err := loadAcceptedCollege(ctx, tx, d.ID, snapshot.CollegeID)
			if err != nil {
				return err
			}
			if err := policy.For(a).CanSubmitPhase(*dc); err != nil {
				return err
			}
			if dc.Finalized {
				return invalidState(ReasonFlowClosed, "college selection flow is closed")
			}
		}
		app, err := tx.Applications().GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		now := s.clock()
		if status == application.StatusRejected {
			err = app.Reject(application.KindStatusUpdate, a.ID, now)
		} else {
			target, _ := application.StageForStatus(status)
			err = app.Advance(application.KindStatusUpdate, status, target, a.ID, now)
		}
		if err != nil {
			return err
		}
		if err := tx.Applications().SaveAll(ctx, []application.Application{*app}); err != nil {
			return err
		}
		updated = *app
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transitions("status_update", 1)
	s.logger.WithFields(logrus.Fields{
		"drive_id":       updated.DriveID,
		"college_id":     updated.CollegeID,
		"application_id": updated.ID,
		"actor_id":       a.ID,
		"role":           a.Role,
		"operation":      "update_status",
		"status":         updated.Status,
	}).Info("application status updated")
	return &updated, nil
}

type StageQuery struct {
	DriveID   common.UUID
	CollegeID common.UUID
	Stage     drive.StageName
	Limit     int
	Offset    int
}

type ApplicationPage struct {
	Items  []application.Application `json:"items"`
	Total  int                       `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

func (s *ApplicationService) ListByStage(ctx context.Context, a actor.Actor, q StageQuery) (*ApplicationPage, error) {
	if !q.Stage.Valid() {
		return nil, invalidInput(ReasonInvalidTargetStage, "unknown stage")
	}
	d, err := s.store.Drives().GetByID(ctx, q.DriveID)
	if err != nil {
		return nil, err
	}
	collegeID, err := authorizeRead(ctx, s.store, a, d, q.CollegeID)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.store.Applications().ListByStage(ctx, application.StageFilter{
		DriveID:   q.DriveID,
		CollegeID: collegeID,
		Stage:     q.Stage,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []application.Application{}
	}
	return &ApplicationPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

type CollegeStats struct {
	drive.College
	StatusCounts map[application.Status]int `json:"status_counts"`
}

type SelectionStats struct {
	DriveID      common.UUID                `json:"drive_id"`
	CurrentStage drive.StageName            `json:"current_stage"`
	IsLocked     bool                       `json:"is_locked"`
	Status       drive.Status               `json:"status"`
	StatusCounts map[application.Status]int `json:"status_counts"`
	Colleges     []CollegeStats             `json:"colleges"`
}

// SelectionStats summarizes the drive and each participating college. College actors only
// see their own college.
func (s *ApplicationService) SelectionStats(ctx context.Context, a actor.Actor, driveID common.UUID) (*SelectionStats, error) {
	d, err := s.store.Drives().GetByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	scope, err := authorizeRead(ctx, s.store, a, d, "")
	if err != nil {
		return nil, err
	}
	colleges, err := s.store.Colleges().ListByDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Applications().CountByStatus(ctx, driveID)
	if err != nil {
		return nil, err
	}
	perCollege := make(map[common.UUID]map[application.Status]int)
	totals := make(map[application.Status]int)
	for _, c := range counts {
		if !scope.IsZero() && c.CollegeID != scope {
			continue
		}
		if perCollege[c.CollegeID] == nil {
			perCollege[c.CollegeID] = make(map[application.Status]int)
		}
		perCollege[c.CollegeID][c.Status] += c.Count
		totals[c.Status] += c.Count
	}
	stats := &SelectionStats{
		DriveID:      d.ID,
		CurrentStage: d.CurrentStage,
		IsLocked:     d.IsLocked,
		Status:       d.Status,
		StatusCounts: totals,
		Colleges:     make([]CollegeStats, 0, len(colleges)),
	}
	for _, dc := range colleges {
		if !scope.IsZero() && dc.CollegeID != scope {
			continue
		}
		byStatus := perCollege[dc.CollegeID]
		if byStatus == nil {
			byStatus = map[application.Status]int{}
		}
		stats.Colleges = append(stats.Colleges, CollegeStats{College: dc, StatusCounts: byStatus})
	}
	return stats, nil
}
