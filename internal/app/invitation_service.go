package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/domain/store"
	"campusdrive/internal/policy"
)

type InvitationService struct {
	store  store.Store
	logger logrus.FieldLogger
	clock  func() time.Time
}

func NewInvitationService(st store.Store, logger logrus.FieldLogger) *InvitationService {
	return &InvitationService{store: st, logger: logger, clock: utcNow}
}

// Invite creates the pending participation record of a college. Only the drive's owner or an
// admin may invite.
func (s *InvitationService) Invite(ctx context.Context, a actor.Actor, driveID, collegeID common.UUID) (*drive.College, error) {
	if collegeID.IsZero() {
		return nil, common.NewValidationError("invalid college", map[string]string{"college_id": "college_id is required"})
	}
	var invited drive.College
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		d, err := loadOpenDrive(ctx, tx, driveID)
		if err != nil {
			return err
		}
		if err := policy.For(a).CanAdvanceStage(*d); err != nil {
			return err
		}
		if _, err := tx.Colleges().Get(ctx, driveID, collegeID); err == nil {
			return invalidState(ReasonAlreadyInvited, "college is already invited to the drive")
		} else if !common.Is(err, common.CodeNotFound) {
			return err
		}
		now := s.clock()
		invited = drive.College{
			ID:               common.NewUUID(),
			DriveID:          driveID,
			CollegeID:        collegeID,
			InvitationStatus: drive.InvitationPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.Colleges().Create(ctx, invited)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"drive_id":   driveID,
		"college_id": collegeID,
		"actor_id":   a.ID,
		"role":       a.Role,
		"operation":  "invite_college",
	}).Info("college invited")
	return &invited, nil
}

type InvitationResponse struct {
	Accept    bool
	ManagedBy drive.ManagedBy
}

// Respond answers a pending invitation. Accepting sets who manages the college's applications;
// declining leaves management unset.
func (s *InvitationService) Respond(ctx context.Context, a actor.Actor, driveID, collegeID common.UUID, resp InvitationResponse) (*drive.College, error) {
	if resp.Accept && resp.ManagedBy != drive.ManagedByCollege && resp.ManagedBy != drive.ManagedByAdmin {
		return nil, common.NewValidationError("invalid managed_by", map[string]string{"managed_by": "managed_by must be COLLEGE or ADMIN"})
	}
	switch a.Role {
	case actor.RoleAdmin:
	case actor.RoleCollege:
		if !a.OwnsCollege(collegeID) {
			return nil, common.NewError(common.CodeForbidden, "invitation belongs to another college", nil).WithReason(policy.ReasonNotOwner)
		}
	default:
		return nil, common.NewError(common.CodeForbidden, "only the invited college can answer", nil).WithReason(policy.ReasonRoleNotPermitted)
	}

	var answered drive.College
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		if _, err := loadOpenDrive(ctx, tx, driveID); err != nil {
			return err
		}
		dc, err := tx.Colleges().Get(ctx, driveID, collegeID)
		if err != nil {
			return err
		}
		if dc.InvitationStatus != drive.InvitationPending {
			return invalidState(ReasonInvitationAnswered, "invitation already answered")
		}
		now := s.clock()
		if resp.Accept {
			dc.InvitationStatus = drive.InvitationAccepted
			dc.ManagedBy = resp.ManagedBy
		} else {
			dc.InvitationStatus = drive.InvitationRejected
			dc.ManagedBy = drive.ManagedByNone
		}
		dc.UpdatedAt = now
		if err := tx.Colleges().Update(ctx, *dc); err != nil {
			return err
		}
		answered = *dc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"drive_id":   driveID,
		"college_id": collegeID,
		"actor_id":   a.ID,
		"role":       a.Role,
		"operation":  "respond_invitation",
		"status":     answered.InvitationStatus,
		"managed_by": answered.ManagedBy,
	}).Info("invitation answered")
	return &answered, nil
}

func (s *InvitationService) List(ctx context.Context, a actor.Actor, driveID common.UUID) ([]drive.College, error) {
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
	if scope.IsZero() {
		return colleges, nil
	}
	out := make([]drive.College, 0, 1)
	for _, dc := range colleges {
		if dc.CollegeID == scope {
			out = append(out, dc)
		}
	}
	return out, nil
}
