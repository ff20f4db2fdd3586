package app

import (
	"context"
	"strings"
	"sync"
	"testing"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/application"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/policy"
)

func TestShortlistInterviewScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 5, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)

	first3 := emailsOf(batch[:3])
	result, err := f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: first3})
	if err != nil {
		t.Fatalf("shortlist: %v", err)
	}
	if result.Count != 3 || result.Preview {
		t.Fatalf("unexpected shortlist result: %+v", result)
	}
	for _, item := range batch[:3] {
		app := f.store.app(item.app.ID)
		if app.Status != application.StatusShortlisted || app.CurrentStage != drive.StageShortlist {
			t.Fatalf("unexpected state %s/%s", app.Status, app.CurrentStage)
		}
		if app.ShortlistedBy != collegeActor.ID || app.ShortlistedAt == nil {
			t.Fatalf("shortlist metadata missing: %+v", app)
		}
	}

	_, err = f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: first3})
	assertCode(t, err, common.CodeInvalidState, ReasonDuplicateSubmission)
	dc := f.store.college(f.driveID, collegeID)
	if !dc.ShortlistSubmitted || dc.ShortlistedCount != 3 {
		t.Fatalf("expected shortlisted count 3, got %+v", dc)
	}

	f.moveDriveTo(t, drive.StageShortlist)
	result, err = f.selection.Interview(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: first3[:2]})
	if err != nil {
		t.Fatalf("interview: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 interviewed, got %d", result.Count)
	}
	dc = f.store.college(f.driveID, collegeID)
	if !dc.InterviewListSubmitted || dc.InterviewedCount != 2 {
		t.Fatalf("unexpected interview counters: %+v", dc)
	}
}

func TestShortlistAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 3, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)

	emails := append(emailsOf(batch), "ghost@college.test")
	_, err := f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emails})
	assertCode(t, err, common.CodePartialMatch, ReasonUnresolvedEmails)
	appErr, _ := common.AsError(err)
	if len(appErr.Details) != 1 || appErr.Details[0] != "ghost@college.test" {
		t.Fatalf("expected unresolved email in details, got %v", appErr.Details)
	}
	for _, item := range batch {
		if app := f.store.app(item.app.ID); app.Status != application.StatusInTest {
			t.Fatalf("application mutated: %+v", app)
		}
	}
	dc := f.store.college(f.driveID, collegeID)
	if dc.ShortlistSubmitted || dc.ShortlistedCount != 0 {
		t.Fatalf("counters changed on rejected batch: %+v", dc)
	}
}

func TestShortlistPreviewDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 2, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)
	before := f.store.transactions()

	emails := append(emailsOf(batch), "missing@college.test")
	result, err := f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emails, Preview: true})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !result.Preview || result.Count != 2 || len(result.NotFound) != 1 {
		t.Fatalf("unexpected preview: %+v", result)
	}
	if result.Students[0].Email != batch[0].student.Email || result.Students[0].ApplicationID != batch[0].app.ID {
		t.Fatalf("unexpected resolved student: %+v", result.Students[0])
	}
	if f.store.transactions() != before {
		t.Fatalf("preview opened a transaction")
	}
	if f.store.college(f.driveID, collegeID).ShortlistSubmitted {
		t.Fatalf("preview marked the shortlist submitted")
	}
}

func TestAdminMayResubmitShortlist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, _ := f.addCollege(t, drive.ManagedByAdmin)
	batch := f.addCandidates(t, collegeID, 4, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)

	if _, err := f.selection.Shortlist(ctx, f.admin, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch[:2])}); err != nil {
		t.Fatalf("first shortlist: %v", err)
	}
	if _, err := f.selection.Shortlist(ctx, f.admin, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch[2:])}); err != nil {
		t.Fatalf("admin resubmission: %v", err)
	}
	if got := f.store.college(f.driveID, collegeID).ShortlistedCount; got != 4 {
		t.Fatalf("expected accumulated count 4, got %d", got)
	}
}

func TestPhaseAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByAdmin)
	batch := f.addCandidates(t, collegeID, 1, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)
	req := PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch)}

	_, err := f.selection.Shortlist(ctx, collegeActor, req)
	assertCode(t, err, common.CodeForbidden, policy.ReasonNotManager)

	_, err = f.selection.Shortlist(ctx, f.company, req)
	assertCode(t, err, common.CodeForbidden, policy.ReasonRoleNotPermitted)

	unmanaged, unmanagedActor := f.addCollege(t, drive.ManagedByNone)
	_, err = f.selection.Shortlist(ctx, unmanagedActor, PhaseRequest{DriveID: f.driveID, CollegeID: unmanaged, Emails: []string{"a@b.test"}})
	assertCode(t, err, common.CodeForbidden, policy.ReasonManagementNotConfigured)
}

func TestPhaseRequiresMatchingDriveStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 1, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)

	_, err := f.selection.Interview(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch)})
	assertCode(t, err, common.CodeInvalidState, ReasonStageMismatch)

	pending := common.NewUUID()
	f.store.mu.Lock()
	f.store.state.colleges[collegeKey{f.driveID, pending}] = drive.College{DriveID: f.driveID, CollegeID: pending, InvitationStatus: drive.InvitationPending}
	f.store.mu.Unlock()
	_, err = f.selection.Shortlist(ctx, f.admin, PhaseRequest{DriveID: f.driveID, CollegeID: pending, Emails: emailsOf(batch)})
	assertCode(t, err, common.CodeInvalidState, ReasonInvitationNotAccepted)
}

func TestEmailNormalization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 2, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)

	_, err := f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: []string{batch[0].student.Email, "not-an-email"}})
	assertCode(t, err, common.CodeValidation, ReasonInvalidEmails)

	_, err = f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: []string{" ", ""}})
	assertCode(t, err, common.CodeValidation, ReasonEmptyBatch)

	// duplicates and case differences collapse for shortlist
	emails := []string{strings.ToUpper(batch[0].student.Email), " " + batch[0].student.Email + " ", batch[1].student.Email}
	result, err := f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emails})
	if err != nil {
		t.Fatalf("shortlist: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 after dedupe, got %d", result.Count)
	}
}

func TestFinalizeRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 1, drive.StageInterview)
	f.moveDriveTo(t, drive.StageInterview)

	email := batch[0].student.Email
	_, err := f.selection.Finalize(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: []string{email, strings.ToUpper(email)}})
	assertCode(t, err, common.CodeValidation, ReasonDuplicateEmails)
}

func TestFinalizeLocksDriveWhenLastCollegeCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeA, actorA := f.addCollege(t, drive.ManagedByCollege)
	collegeB, actorB := f.addCollege(t, drive.ManagedByCollege)
	batchA := f.addCandidates(t, collegeA, 2, drive.StageInterview)
	batchB := f.addCandidates(t, collegeB, 1, drive.StageInterview)
	f.moveDriveTo(t, drive.StageInterview)

	result, err := f.selection.Finalize(ctx, actorA, PhaseRequest{DriveID: f.driveID, CollegeID: collegeA, Emails: emailsOf(batchA)})
	if err != nil {
		t.Fatalf("finalize A: %v", err)
	}
	if result.DriveLocked || f.store.drive(f.driveID).IsLocked {
		t.Fatalf("drive locked while college B is still open")
	}
	dc := f.store.college(f.driveID, collegeA)
	if !dc.Finalized || dc.FinalizedBy != actorA.ID || dc.SelectedCount != 2 {
		t.Fatalf("unexpected college A state: %+v", dc)
	}
	app := f.store.app(batchA[0].app.ID)
	if app.Status != application.StatusSelected || app.CurrentStage != drive.StageFinal || app.SelectedBy != actorA.ID {
		t.Fatalf("unexpected selected application: %+v", app)
	}

	_, err = f.selection.Finalize(ctx, actorA, PhaseRequest{DriveID: f.driveID, CollegeID: collegeA, Emails: emailsOf(batchA)})
	assertCode(t, err, common.CodeInvalidState, ReasonFlowClosed)

	result, err = f.selection.Finalize(ctx, actorB, PhaseRequest{DriveID: f.driveID, CollegeID: collegeB, Emails: emailsOf(batchB)})
	if err != nil {
		t.Fatalf("finalize B: %v", err)
	}
	if !result.DriveLocked {
		t.Fatalf("expected drive lock on last finalize")
	}
	d := f.store.drive(f.driveID)
	if !d.IsLocked || d.Status != drive.StatusClosed {
		t.Fatalf("expected locked closed drive, got %+v", d)
	}
}

func TestBulkRejectKeepsStageAndExcludesFromPhases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 2, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)

	_, err := f.selection.BulkReject(ctx, collegeActor, BulkRejectRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch[:1]), Stage: drive.StageTest})
	assertCode(t, err, common.CodeForbidden, policy.ReasonRoleNotPermitted)

	result, err := f.selection.BulkReject(ctx, f.company, BulkRejectRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch[:1]), Stage: drive.StageTest})
	if err != nil {
		t.Fatalf("bulk reject: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("expected 1 rejected, got %d", result.Count)
	}
	app := f.store.app(batch[0].app.ID)
	if app.Status != application.StatusRejected || app.CurrentStage != drive.StageTest {
		t.Fatalf("expected REJECTED in TEST, got %s/%s", app.Status, app.CurrentStage)
	}

	preview, err := f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch), Preview: true})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(preview.NotFound) != 1 || preview.NotFound[0] != batch[0].student.Email {
		t.Fatalf("rejected student should be not found, got %+v", preview.NotFound)
	}

	_, err = f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch[:1])})
	assertCode(t, err, common.CodePartialMatch, ReasonUnresolvedEmails)

	_, err = f.selection.BulkReject(ctx, f.company, BulkRejectRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch), Stage: drive.StageShortlist})
	assertCode(t, err, common.CodePartialMatch, ReasonUnresolvedEmails)
	if app := f.store.app(batch[1].app.ID); app.IsRejected() {
		t.Fatalf("batch with unresolved email must not reject anyone")
	}
}

func TestCloseCollegeDrive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 1, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)

	closed, err := f.selection.CloseCollegeDrive(ctx, collegeActor, f.driveID, collegeID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed.Finalized || closed.FinalizedAt == nil {
		t.Fatalf("expected finalized college, got %+v", closed)
	}
	if f.store.drive(f.driveID).IsLocked {
		t.Fatalf("closing a college must not lock the drive")
	}

	_, err = f.selection.CloseCollegeDrive(ctx, collegeActor, f.driveID, collegeID)
	assertCode(t, err, common.CodeInvalidState, ReasonAlreadyClosed)

	_, err = f.selection.Shortlist(ctx, collegeActor, PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch)})
	assertCode(t, err, common.CodeInvalidState, ReasonFlowClosed)
}

func TestValidateEmails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 2, drive.StageTest)

	f.store.mu.Lock()
	delete(f.store.state.links[collegeKey{f.driveID, collegeID}], batch[1].student.ID)
	f.store.mu.Unlock()
	before := f.store.transactions()

	emails := []string{batch[0].student.Email, batch[1].student.Email, "nobody@college.test"}
	result, err := f.selection.ValidateEmails(ctx, collegeActor, f.driveID, collegeID, emails)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(result.Valid) != 1 || result.Valid[0] != batch[0].student.Email {
		t.Fatalf("unexpected valid list: %v", result.Valid)
	}
	want := []InvalidEmail{
		{Email: batch[1].student.Email, Reason: EmailNotLinkedToDrive},
		{Email: "nobody@college.test", Reason: EmailNotFoundInCollege},
	}
	if len(result.Invalid) != len(want) {
		t.Fatalf("unexpected invalid list: %+v", result.Invalid)
	}
	for i := range want {
		if result.Invalid[i] != want[i] {
			t.Fatalf("invalid[%d] = %+v, want %+v", i, result.Invalid[i], want[i])
		}
	}
	if f.store.transactions() != before {
		t.Fatalf("validation opened a transaction")
	}
}

func TestConcurrentShortlistSubmitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	collegeID, collegeActor := f.addCollege(t, drive.ManagedByCollege)
	batch := f.addCandidates(t, collegeID, 3, drive.StageTest)
	f.moveDriveTo(t, drive.StageTest)
	req := PhaseRequest{DriveID: f.driveID, CollegeID: collegeID, Emails: emailsOf(batch)}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.selection.Shortlist(ctx, collegeActor, req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !common.Is(err, common.CodeInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful submission, got %d", succeeded)
	}
	if got := f.store.college(f.driveID, collegeID).ShortlistedCount; got != 3 {
		t.Fatalf("expected shortlisted count 3, got %d", got)
	}
}
