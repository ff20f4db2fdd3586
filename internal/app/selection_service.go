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

type SelectionService struct {
	store   store.Store
	logger  logrus.FieldLogger
	metrics *metrics.Collector
	clock   func() time.Time
}

func NewSelectionService(st store.Store, logger logrus.FieldLogger, collector *metrics.Collector) *SelectionService {
	return &SelectionService{store: st, logger: logger, metrics: collector, clock: utcNow}
}

type PhaseRequest struct {
	DriveID   common.UUID
	CollegeID common.UUID
	Emails    []string
	Preview   bool
}

type BulkRejectRequest struct {
	DriveID   common.UUID
	CollegeID common.UUID
	Emails    []string
	Stage     drive.StageName
	Preview   bool
}

type ResolvedStudent struct {
	StudentID     common.UUID `json:"student_id"`
	ApplicationID common.UUID `json:"application_id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
}

type PhaseResult struct {
	Operation   string            `json:"operation"`
	Count       int               `json:"count"`
	Preview     bool              `json:"preview"`
	Students    []ResolvedStudent `json:"students"`
	NotFound    []string          `json:"not_found,omitempty"`
	DriveLocked bool              `json:"drive_locked,omitempty"`
}

// phase parameterizes the shortlist/interview/finalize template.
type phase struct {
	operation string
	kind      application.Kind
	// driveStage is the stage the drive must be in; fromStage the stage eligible applications sit in.
	driveStage       drive.StageName
	fromStage        drive.StageName
	toStatus         application.Status
	toStage          drive.StageName
	strictDuplicates bool
	submitted        func(dc drive.College) bool
	apply            func(dc *drive.College, count int, actorID common.UUID, now time.Time)
}

var (
	shortlistPhase = phase{
		operation:  "shortlist",
		kind:       application.KindShortlist,
		driveStage: drive.StageTest,
		fromStage:  drive.StageTest,
		toStatus:   application.StatusShortlisted,
		toStage:    drive.StageShortlist,
		submitted:  func(dc drive.College) bool { return dc.ShortlistSubmitted },
		apply: func(dc *drive.College, count int, _ common.UUID, now time.Time) {
			at := now
			dc.ShortlistSubmitted = true
			dc.ShortlistSubmittedAt = &at
			dc.ShortlistedCount += count
		},
	}
	interviewPhase = phase{
		operation:  "interview",
		kind:       application.KindInterview,
		driveStage: drive.StageShortlist,
		fromStage:  drive.StageShortlist,
		toStatus:   application.StatusInInterview,
		toStage:    drive.StageInterview,
		submitted:  func(dc drive.College) bool { return dc.InterviewListSubmitted },
		apply: func(dc *drive.College, count int, _ common.UUID, now time.Time) {
			at := now
			dc.InterviewListSubmitted = true
			dc.InterviewListSubmittedAt = &at
			dc.InterviewedCount += count
		},
	}
	finalizePhase = phase{
		operation:        "finalize",
		kind:             application.KindFinalize,
		driveStage:       drive.StageInterview,
		fromStage:        drive.StageInterview,
		toStatus:         application.StatusSelected,
		toStage:          drive.StageFinal,
		strictDuplicates: true,
		apply: func(dc *drive.College, count int, actorID common.UUID, now time.Time) {
			at := now
			dc.Finalized = true
			dc.FinalizedAt = &at
			dc.FinalizedBy = actorID
			dc.SelectedCount += count
		},
	}
)

func (s *SelectionService) Shortlist(ctx context.Context, a actor.Actor, req PhaseRequest) (*PhaseResult, error) {
	return s.runPhase(ctx, a, shortlistPhase, req)
}

func (s *SelectionService) Interview(ctx context.Context, a actor.Actor, req PhaseRequest) (*PhaseResult, error) {
	return s.runPhase(ctx, a, interviewPhase, req)
}

// Finalize selects the college's interviewed candidates and closes its flow. When it was the
// last open college the drive is locked in the same transaction.
func (s *SelectionService) Finalize(ctx context.Context, a actor.Actor, req PhaseRequest) (*PhaseResult, error) {
	return s.runPhase(ctx, a, finalizePhase, req)
}

type candidate struct {
	student ResolvedStudent
	app     application.Application
}

type phasePlan struct {
	drive    *drive.Drive
	college  *drive.College
	resolved []candidate
	notFound []string
}

func (s *SelectionService) runPhase(ctx context.Context, a actor.Actor, p phase, req PhaseRequest) (*PhaseResult, error) {
	if req.Preview {
		plan, err := s.preparePhase(ctx, s.store, a, p, req)
		if err != nil {
			return nil, err
		}
		return previewResult(p.operation, plan), nil
	}

	var result *PhaseResult
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		plan, err := s.preparePhase(ctx, tx, a, p, req)
		if err != nil {
			return err
		}
		if err := requireComplete(plan); err != nil {
			return err
		}
		now := s.clock()
		batch := make([]application.Application, 0, len(plan.resolved))
		for _, c := range plan.resolved {
			app := c.app
			if err := app.Advance(p.kind, p.toStatus, p.toStage, a.ID, now); err != nil {
				return err
			}
			batch = append(batch, app)
		}
		if err := tx.Applications().SaveAll(ctx, batch); err != nil {
			return err
		}
		p.apply(plan.college, len(batch), a.ID, now)
		plan.college.UpdatedAt = now
		if err := tx.Colleges().Update(ctx, *plan.college); err != nil {
			return err
		}
		result = committedResult(p.operation, plan)
		if p.kind != application.KindFinalize {
			return nil
		}
		open, err := tx.Colleges().CountOpen(ctx, req.DriveID)
		if err != nil {
			return err
		}
		if open == 0 {
			plan.drive.Lock(now)
			if err := tx.Drives().Update(ctx, *plan.drive); err != nil {
				return err
			}
			result.DriveLocked = true
		}
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}
	s.committed(a, req.DriveID, req.CollegeID, p.operation, result)
	return result, nil
}

// preparePhase runs every check and resolves the batch without writing anything.
func (s *SelectionService) preparePhase(ctx context.Context, repos store.Repositories, a actor.Actor, p phase, req PhaseRequest) (*phasePlan, error) {
	d, err := loadOpenDrive(ctx, repos, req.DriveID)
	if err != nil {
		return nil, err
	}
	if err := requireActiveStage(ctx, repos, d, p.driveStage); err != nil {
		return nil, err
	}
	dc, err := loadAcceptedCollege(ctx, repos, req.DriveID, req.CollegeID)
	if err != nil {
		return nil, err
	}
	if err := policy.For(a).CanSubmitPhase(*dc); err != nil {
		return nil, err
	}
	if dc.Finalized {
		return nil, invalidState(ReasonFlowClosed, "college selection flow is closed")
	}
	if p.submitted != nil && p.submitted(*dc) && !a.IsAdmin() {
		return nil, invalidState(ReasonDuplicateSubmission, p.operation+" list already submitted")
	}
	emails, err := normalizeEmails(req.Emails, p.strictDuplicates)
	if err != nil {
		return nil, err
	}
	resolved, notFound, err := resolveCandidates(ctx, repos, req.DriveID, req.CollegeID, emails, p.fromStage)
	if err != nil {
		return nil, err
	}
	return &phasePlan{drive: d, college: dc, resolved: resolved, notFound: notFound}, nil
}

// BulkReject rejects the listed students of one college sitting in req.Stage. Their stage is kept.
func (s *SelectionService) BulkReject(ctx context.Context, a actor.Actor, req BulkRejectRequest) (*PhaseResult, error) {
	if !req.Stage.Valid() {
		return nil, invalidInput(ReasonInvalidTargetStage, "unknown stage")
	}
	prepare := func(repos store.Repositories) (*phasePlan, error) {
		d, err := loadOpenDrive(ctx, repos, req.DriveID)
		if err != nil {
			return nil, err
		}
		if err := policy.For(a).CanReject(*d); err != nil {
			return nil, err
		}
		dc, err := repos.Colleges().Get(ctx, req.DriveID, req.CollegeID)
		if err != nil {
			return nil, err
		}
		if dc.Finalized {
			return nil, invalidState(ReasonFlowClosed, "college selection flow is closed")
		}
		emails, err := normalizeEmails(req.Emails, false)
		if err != nil {
			return nil, err
		}
		resolved, notFound, err := resolveCandidates(ctx, repos, req.DriveID, req.CollegeID, emails, req.Stage)
		if err != nil {
			return nil, err
		}
		return &phasePlan{drive: d, college: dc, resolved: resolved, notFound: notFound}, nil
	}

	if req.Preview {
		plan, err := prepare(s.store)
		if err != nil {
			return nil, err
		}
		return previewResult("reject", plan), nil
	}

	var result *PhaseResult
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		plan, err := prepare(tx)
		if err != nil {
			return err
		}
		if err := requireComplete(plan); err != nil {
			return err
		}
		now := s.clock()
		batch := make([]application.Application, 0, len(plan.resolved))
		for _, c := range plan.resolved {
			app := c.app
			if err := app.Reject(application.KindReject, a.ID, now); err != nil {
				return err
			}
			batch = append(batch, app)
		}
		if err := tx.Applications().SaveAll(ctx, batch); err != nil {
			return err
		}
		result = committedResult("reject", plan)
		return nil
	})
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}
	s.committed(a, req.DriveID, req.CollegeID, "reject", result)
	return result, nil
}

// CloseCollegeDrive finalizes a college's flow early, without any selection.
func (s *SelectionService) CloseCollegeDrive(ctx context.Context, a actor.Actor, driveID, collegeID common.UUID) (*drive.College, error) {
	var closed drive.College
	err := s.store.WithinTx(ctx, func(tx store.Repositories) error {
		if _, err := loadOpenDrive(ctx, tx, driveID); err != nil {
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
			return invalidState(ReasonAlreadyClosed, "college flow is already closed")
		}
		now := s.clock()
		at := now
		dc.Finalized = true
		dc.FinalizedAt = &at
		dc.FinalizedBy = a.ID
		dc.UpdatedAt = now
		if err := tx.Colleges().Update(ctx, *dc); err != nil {
			return err
		}
		closed = *dc
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
		"operation":  "close_college_drive",
	}).Info("college flow closed")
	return &closed, nil
}

type InvalidEmail struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type EmailValidation struct {
	Valid   []string       `json:"valid"`
	Invalid []InvalidEmail `json:"invalid"`
}

const (
	EmailNotFoundInCollege = "NOT_FOUND_IN_COLLEGE"
	EmailNotLinkedToDrive  = "NOT_LINKED_TO_DRIVE"
)

// ValidateEmails is a read-only pre-flight check of which emails resolve to students of the
// college that are linked to the drive.
func (s *SelectionService) ValidateEmails(ctx context.Context, a actor.Actor, driveID, collegeID common.UUID, emails []string) (*EmailValidation, error) {
	d, err := s.store.Drives().GetByID(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if collegeID.IsZero() {
		return nil, invalidInput(ReasonEmptyBatch, "college_id is required")
	}
	if _, err := authorizeRead(ctx, s.store, a, d, collegeID); err != nil {
		return nil, err
	}
	normalized, err := normalizeEmails(emails, false)
	if err != nil {
		return nil, err
	}
	students, err := s.store.Students().FindByEmails(ctx, collegeID, normalized)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]common.UUID, len(students))
	ids := make([]common.UUID, 0, len(students))
	for _, st := range students {
		byEmail[st.Email] = st.ID
		ids = append(ids, st.ID)
	}
	linked, err := s.store.Students().LinkedToDrive(ctx, driveID, collegeID, ids)
	if err != nil {
		return nil, err
	}
	result := &EmailValidation{Valid: []string{}, Invalid: []InvalidEmail{}}
	for _, email := range normalized {
		id, ok := byEmail[email]
		switch {
		case !ok:
			result.Invalid = append(result.Invalid, InvalidEmail{Email: email, Reason: EmailNotFoundInCollege})
		case !linked[id]:
			result.Invalid = append(result.Invalid, InvalidEmail{Email: email, Reason: EmailNotLinkedToDrive})
		default:
			result.Valid = append(result.Valid, email)
		}
	}
	return result, nil
}

// resolveCandidates maps emails to applications of the college sitting in stage and not rejected.
// Anything that fails a step lands in notFound, in input order.
func resolveCandidates(ctx context.Context, repos store.Repositories, driveID, collegeID common.UUID, emails []string, stage drive.StageName) ([]candidate, []string, error) {
	students, err := repos.Students().FindByEmails(ctx, collegeID, emails)
	if err != nil {
		return nil, nil, err
	}
	byEmail := make(map[string]ResolvedStudent, len(students))
	ids := make([]common.UUID, 0, len(students))
	for _, st := range students {
		byEmail[st.Email] = ResolvedStudent{StudentID: st.ID, Email: st.Email, Name: st.Name}
		ids = append(ids, st.ID)
	}
	linked, err := repos.Students().LinkedToDrive(ctx, driveID, collegeID, ids)
	if err != nil {
		return nil, nil, err
	}
	linkedIDs := make([]common.UUID, 0, len(linked))
	for _, id := range ids {
		if linked[id] {
			linkedIDs = append(linkedIDs, id)
		}
	}
	byStudent := make(map[common.UUID]application.Application)
	if len(linkedIDs) > 0 {
		apps, err := repos.Applications().ListByStudents(ctx, driveID, collegeID, linkedIDs)
		if err != nil {
			return nil, nil, err
		}
		for _, app := range apps {
			byStudent[app.StudentID] = app
		}
	}

	resolved := make([]candidate, 0, len(emails))
	var notFound []string
	for _, email := range emails {
		st, ok := byEmail[email]
		if !ok || !linked[st.StudentID] {
			notFound = append(notFound, email)
			continue
		}
		app, ok := byStudent[st.StudentID]
		if !ok || app.IsRejected() || app.CurrentStage != stage {
			notFound = append(notFound, email)
			continue
		}
		st.ApplicationID = app.ID
		resolved = append(resolved, candidate{student: st, app: app})
	}
	return resolved, notFound, nil
}

func requireComplete(plan *phasePlan) error {
	if len(plan.notFound) > 0 {
		return partialMatch(ReasonUnresolvedEmails, "some emails could not be resolved to eligible applications", plan.notFound)
	}
	if len(plan.resolved) == 0 {
		return invalidInput(ReasonNothingToProcess, "no applications to process")
	}
	return nil
}

func previewResult(operation string, plan *phasePlan) *PhaseResult {
	result := &PhaseResult{Operation: operation, Preview: true, NotFound: plan.notFound}
	result.Students = students(plan.resolved)
	result.Count = len(result.Students)
	return result
}

func committedResult(operation string, plan *phasePlan) *PhaseResult {
	result := &PhaseResult{Operation: operation}
	result.Students = students(plan.resolved)
	result.Count = len(result.Students)
	return result
}

func students(resolved []candidate) []ResolvedStudent {
	out := make([]ResolvedStudent, 0, len(resolved))
	for _, c := range resolved {
		out = append(out, c.student)
	}
	return out
}

func (s *SelectionService) committed(a actor.Actor, driveID, collegeID common.UUID, operation string, result *PhaseResult) {
	s.metrics.Transitions(operation, result.Count)
	entry := s.logger.WithFields(logrus.Fields{
		"drive_id":   driveID,
		"college_id": collegeID,
		"actor_id":   a.ID,
		"role":       a.Role,
		"operation":  operation,
		"count":      result.Count,
	})
	entry.Info("selection phase committed")
	if result.DriveLocked {
		s.metrics.DriveLocked("all_colleges_finalized")
		entry.WithField("reason", "all_colleges_finalized").Info("drive locked")
	}
}

func (s *SelectionService) recordRejection(err error) {
	if common.Is(err, common.CodePartialMatch) {
		s.metrics.BatchRejected(reasonOf(err))
	}
}
