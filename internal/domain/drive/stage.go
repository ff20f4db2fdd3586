package drive

import (
	"strings"
	"time"

	"campusdrive/internal/common"
)

type StageName string

const (
	StageApplications StageName = "APPLICATIONS"
	StageTest         StageName = "TEST"
	StageShortlist    StageName = "SHORTLIST"
	StageInterview    StageName = "INTERVIEW"
	StageFinal        StageName = "FINAL"
)

// Stages lists every stage in pipeline order; index+1 is the stage order.
var Stages = []StageName{StageApplications, StageTest, StageShortlist, StageInterview, StageFinal}

func ParseStageName(value string) (StageName, error) {
	name := StageName(strings.ToUpper(strings.TrimSpace(value)))
	if name.Order() == 0 {
		return "", common.NewValidationError("invalid stage", map[string]string{"stage": "stage must be APPLICATIONS, TEST, SHORTLIST, INTERVIEW, or FINAL"})
	}
	return name, nil
}

// Order returns 1..5, or 0 for an unknown name.
func (s StageName) Order() int {
	for i, name := range Stages {
		if name == s {
			return i + 1
		}
	}
	return 0
}

func (s StageName) Valid() bool {
	return s.Order() > 0
}

func (s StageName) Next() (StageName, bool) {
	order := s.Order()
	if order == 0 || order == len(Stages) {
		return "", false
	}
	return Stages[order], true
}

func (s StageName) Previous() (StageName, bool) {
	order := s.Order()
	if order <= 1 {
		return "", false
	}
	return Stages[order-2], true
}

type StageStatus string

const (
	StageStatusPending   StageStatus = "PENDING"
	StageStatusActive    StageStatus = "ACTIVE"
	StageStatusCompleted StageStatus = "COMPLETED"
)

type Stage struct {
	ID          common.UUID `json:"id"`
	DriveID     common.UUID `json:"drive_id"`
	Name        StageName   `json:"name"`
	Order       int         `json:"order"`
	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// NewStages builds the five stage rows of a fresh drive with APPLICATIONS active.
func NewStages(driveID common.UUID, now time.Time) []Stage {
	stages := make([]Stage, 0, len(Stages))
	for i, name := range Stages {
		stage := Stage{
			ID:      common.NewUUID(),
			DriveID: driveID,
			Name:    name,
			Order:   i + 1,
			Status:  StageStatusPending,
		}
		if name == StageApplications {
			started := now
			stage.Status = StageStatusActive
			stage.StartedAt = &started
		}
		stages = append(stages, stage)
	}
	return stages
}

// ValidateSequence checks the completed-prefix / single-active shape of a drive's stages.
func ValidateSequence(stages []Stage) bool {
	seenActive := false
	seenPending := false
	for i, stage := range stages {
		if stage.Order != i+1 || stage.Name != Stages[i] {
			return false
		}
		switch stage.Status {
		case StageStatusCompleted:
			if seenActive || seenPending {
				return false
			}
		case StageStatusActive:
			if seenActive || seenPending {
				return false
			}
			seenActive = true
		case StageStatusPending:
			seenPending = true
		default:
			return false
		}
	}
	return len(stages) == len(Stages)
}

func FindStage(stages []Stage, name StageName) (*Stage, bool) {
	for i := range stages {
		if stages[i].Name == name {
			return &stages[i], true
		}
	}
	return nil, false
}
