package application

import (
	"strings"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/drive"
)

var transitions = map[Status][]Status{
	StatusApplied:     {StatusInTest, StatusRejected},
	StatusInTest:      {StatusShortlisted, StatusRejected},
	StatusShortlisted: {StatusInInterview, StatusRejected},
	StatusInInterview: {StatusSelected, StatusRejected},
	StatusSelected:    {StatusRejected},
	StatusRejected:    {},
}

var statusStage = map[Status]drive.StageName{
	StatusApplied:     drive.StageApplications,
	StatusInTest:      drive.StageTest,
	StatusShortlisted: drive.StageShortlist,
	StatusInInterview: drive.StageInterview,
	StatusSelected:    drive.StageFinal,
	StatusRejected:    drive.StageFinal,
}

var stageStatus = map[drive.StageName]Status{
	drive.StageApplications: StatusApplied,
	drive.StageTest:         StatusInTest,
	drive.StageShortlist:    StatusShortlisted,
	drive.StageInterview:    StatusInInterview,
	drive.StageFinal:        StatusSelected,
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(status Status) bool {
	return len(transitions[status]) == 0
}

func StageForStatus(status Status) (drive.StageName, bool) {
	stage, ok := statusStage[status]
	return stage, ok
}

// StatusForStage is the non-rejected status an application holds while sitting in stage.
func StatusForStage(stage drive.StageName) (Status, bool) {
	status, ok := stageStatus[stage]
	return status, ok
}

// ValidPair reports whether status and stage agree. REJECTED pairs with any stage:
// the stage records where the candidate was rejected.
func ValidPair(status Status, stage drive.StageName) bool {
	if status == StatusRejected {
		return stage.Valid()
	}
	mapped, ok := statusStage[status]
	return ok && mapped == stage
}

func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := transitions[status]; !ok {
		return "", common.NewValidationError("invalid status", map[string]string{"status": "status must be APPLIED, IN_TEST, SHORTLISTED, IN_INTERVIEW, SELECTED, or REJECTED"})
	}
	return status, nil
}
