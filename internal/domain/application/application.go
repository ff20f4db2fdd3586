package application

import (
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/drive"
)

type Status string

const (
	StatusApplied     Status = "APPLIED"
	StatusInTest      Status = "IN_TEST"
	StatusShortlisted Status = "SHORTLISTED"
	StatusInInterview Status = "IN_INTERVIEW"
	StatusSelected    Status = "SELECTED"
	StatusRejected    Status = "REJECTED"
)

// Kind tags which operation produced a transition record.
type Kind string

const (
	KindProgress     Kind = "PROGRESS"
	KindShortlist    Kind = "SHORTLIST"
	KindInterview    Kind = "INTERVIEW"
	KindFinalize     Kind = "FINALIZE"
	KindReject       Kind = "REJECT"
	KindStatusUpdate Kind = "STATUS_UPDATE"
)

type Transition struct {
	Kind       Kind            `json:"kind"`
	FromStage  drive.StageName `json:"from_stage"`
	ToStage    drive.StageName `json:"to_stage"`
	FromStatus Status          `json:"from_status"`
	ToStatus   Status          `json:"to_status"`
	ActorID    common.UUID     `json:"actor_id"`
	At         time.Time       `json:"at"`
}

type Application struct {
	ID            common.UUID     `json:"id"`
	DriveID       common.UUID     `json:"drive_id"`
	StudentID     common.UUID     `json:"student_id"`
	CollegeID     common.UUID     `json:"college_id"`
	Status        Status          `json:"status"`
	CurrentStage  drive.StageName `json:"current_stage"`
	StageHistory  []Transition    `json:"stage_history"`
	AppliedAt     time.Time       `json:"applied_at"`
	ShortlistedAt *time.Time      `json:"shortlisted_at,omitempty"`
	ShortlistedBy common.UUID     `json:"shortlisted_by,omitempty"`
	InterviewedAt *time.Time      `json:"interviewed_at,omitempty"`
	InterviewedBy common.UUID     `json:"interviewed_by,omitempty"`
	SelectedAt    *time.Time      `json:"selected_at,omitempty"`
	SelectedBy    common.UUID     `json:"selected_by,omitempty"`
	RejectedAt    *time.Time      `json:"rejected_at,omitempty"`
	RejectedBy    common.UUID     `json:"rejected_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (a Application) IsRejected() bool {
	return a.Status == StatusRejected
}

// Advance moves the application to status/stage and appends the history record.
// Rejections go through Reject so the stage is never touched by a rejection.
func (a *Application) Advance(kind Kind, to Status, stage drive.StageName, actorID common.UUID, now time.Time) error {
	if to == StatusRejected {
		return a.Reject(kind, actorID, now)
	}
	if !CanTransition(a.Status, to) {
		return invalidTransition(a.Status, to)
	}
	if mapped, _ := StageForStatus(to); mapped != stage {
		return common.NewError(common.CodeInvalidState, "status does not match stage", nil).WithReason(ReasonInvalidTransition)
	}
	a.record(kind, stage, to, actorID, now)
	at := now
	switch to {
	case StatusShortlisted:
		a.ShortlistedAt = &at
		a.ShortlistedBy = actorID
	case StatusInInterview:
		a.InterviewedAt = &at
		a.InterviewedBy = actorID
	case StatusSelected:
		a.SelectedAt = &at
		a.SelectedBy = actorID
	}
	return nil
}

// Reject marks the application REJECTED and leaves CurrentStage where it was.
func (a *Application) Reject(kind Kind, actorID common.UUID, now time.Time) error {
	if !CanTransition(a.Status, StatusRejected) {
		return invalidTransition(a.Status, StatusRejected)
	}
	a.record(kind, a.CurrentStage, StatusRejected, actorID, now)
	at := now
	a.RejectedAt = &at
	a.RejectedBy = actorID
	return nil
}

func (a *Application) record(kind Kind, stage drive.StageName, status Status, actorID common.UUID, now time.Time) {
	a.StageHistory = append(a.StageHistory, Transition{
		Kind:       kind,
		FromStage:  a.CurrentStage,
		ToStage:    stage,
		FromStatus: a.Status,
		ToStatus:   status,
		ActorID:    actorID,
		At:         now,
	})
	a.Status = status
	a.CurrentStage = stage
	a.UpdatedAt = now
}

const ReasonInvalidTransition = "invalid_transition"

func invalidTransition(from, to Status) error {
	return common.NewError(common.CodeInvalidState, "invalid status transition "+string(from)+" -> "+string(to), nil).WithReason(ReasonInvalidTransition)
}
