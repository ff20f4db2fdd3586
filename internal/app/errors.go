package app

import (
	"campusdrive/internal/common"
	"campusdrive/internal/domain/application"
)

const (
	ReasonAlreadyInitialized      = "already_initialized"
	ReasonDriveLocked             = "drive_locked"
	ReasonStagesNotInitialized    = "stages_not_initialized"
	ReasonStageMismatch           = "stage_mismatch"
	ReasonStageNotActive          = "stage_not_active"
	ReasonStageNotComplete        = "stage_not_complete"
	ReasonStageAlreadyCompleted   = "stage_already_completed"
	ReasonNoNextStage             = "no_next_stage"
	ReasonNoApplicationsProcessed = "no_applications_processed"
	ReasonInvalidTargetStage      = "invalid_target_stage"
	ReasonInvitationNotAccepted   = "invitation_not_accepted"
	ReasonInvitationAnswered      = "invitation_already_answered"
	ReasonAlreadyInvited          = "already_invited"
	ReasonFlowClosed              = "flow_closed"
	ReasonDuplicateSubmission     = "duplicate_submission"
	ReasonAlreadyClosed           = "already_closed"
	ReasonInvalidTransition       = application.ReasonInvalidTransition
	ReasonDuplicateEmails         = "duplicate_emails"
	ReasonInvalidEmails           = "invalid_emails"
	ReasonEmptyBatch              = "empty_batch"
	ReasonUnresolvedEmails        = "unresolved_emails"
	ReasonNothingToProcess        = "nothing_to_process"
	ReasonPartialMatchRejected    = "partial_match_rejected"
)

func invalidState(reason, message string) error {
	return common.NewError(common.CodeInvalidState, message, nil).WithReason(reason)
}

func invalidInput(reason, message string, details ...string) error {
	return common.NewError(common.CodeValidation, message, nil).WithReason(reason).WithDetails(details...)
}

func partialMatch(reason, message string, details []string) error {
	return common.NewError(common.CodePartialMatch, message, nil).WithReason(reason).WithDetails(details...)
}

func notFound(message string) error {
	return common.NewError(common.CodeNotFound, message, nil)
}

func reasonOf(err error) string {
	if appErr, ok := common.AsError(err); ok {
		return appErr.Reason
	}
	return ""
}
