package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/domain/application"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/domain/store"
	"campusdrive/internal/domain/student"
	"campusdrive/internal/metrics"
	"campusdrive/internal/observability"
)

type collegeKey struct {
	driveID   common.UUID
	collegeID common.UUID
}

type fakeState struct {
	drives   map[common.UUID]drive.Drive
	stages   map[common.UUID][]drive.Stage
	colleges map[collegeKey]drive.College
	apps     map[common.UUID]application.Application
	students map[common.UUID]student.Student
	links    map[collegeKey]map[common.UUID]bool
}

func newFakeState() *fakeState {
	return &fakeState{
		drives:   make(map[common.UUID]drive.Drive),
		stages:   make(map[common.UUID][]drive.Stage),
		colleges: make(map[collegeKey]drive.College),
		apps:     make(map[common.UUID]application.Application),
		students: make(map[common.UUID]student.Student),
		links:    make(map[collegeKey]map[common.UUID]bool),
	}
}

func (s *fakeState) clone() *fakeState {
	out := newFakeState()
	for k, v := range s.drives {
		out.drives[k] = v
	}
	for k, v := range s.stages {
		out.stages[k] = append([]drive.Stage(nil), v...)
	}
	for k, v := range s.colleges {
		out.colleges[k] = v
	}
	for k, v := range s.apps {
		out.apps[k] = cloneApp(v)
	}
	for k, v := range s.students {
		out.students[k] = v
	}
	for k, v := range s.links {
		set := make(map[common.UUID]bool, len(v))
		for id := range v {
			set[id] = true
		}
		out.links[k] = set
	}
	return out
}

func cloneApp(app application.Application) application.Application {
	app.StageHistory = append([]application.Transition(nil), app.StageHistory...)
	return app
}

// fakeStore serializes transactions with txMu and restores a snapshot when fn fails.
type fakeStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *fakeState
	txs   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: newFakeState()}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	snapshot := s.state.clone()
	s.txs++
	s.mu.Unlock()
	if err := fn(s); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) Drives() drive.Repository {
	return fakeDrives{s}
}

func (s *fakeStore) Stages() drive.StageRepository {
	return fakeStages{s}
}

func (s *fakeStore) Colleges() drive.CollegeRepository {
	return fakeColleges{s}
}

func (s *fakeStore) Applications() application.Repository {
	return fakeApplications{s}
}

func (s *fakeStore) Students() student.Repository {
	return fakeStudents{s}
}

func (s *fakeStore) transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}

func (s *fakeStore) drive(id common.UUID) drive.Drive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.drives[id]
}

func (s *fakeStore) college(driveID, collegeID common.UUID) drive.College {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.colleges[collegeKey{driveID, collegeID}]
}

func (s *fakeStore) app(id common.UUID) application.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneApp(s.state.apps[id])
}

func (s *fakeStore) stageRows(driveID common.UUID) []drive.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]drive.Stage(nil), s.state.stages[driveID]...)
}

type fakeDrives struct{ s *fakeStore }

func (r fakeDrives) GetByID(ctx context.Context, id common.UUID) (*drive.Drive, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.state.drives[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "drive not found", nil)
	}
	return &d, nil
}

func (r fakeDrives) Update(ctx context.Context, d drive.Drive) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.drives[d.ID]; !ok {
		return common.NewError(common.CodeNotFound, "drive not found", nil)
	}
	r.s.state.drives[d.ID] = d
	return nil
}

type fakeStages struct{ s *fakeStore }

func (r fakeStages) ListByDrive(ctx context.Context, driveID common.UUID) ([]drive.Stage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]drive.Stage(nil), r.s.state.stages[driveID]...), nil
}

func (r fakeStages) CreateAll(ctx context.Context, stages []drive.Stage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, stage := range stages {
		r.s.state.stages[stage.DriveID] = append(r.s.state.stages[stage.DriveID], stage)
	}
	return nil
}

func (r fakeStages) Update(ctx context.Context, stage drive.Stage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.state.stages[stage.DriveID]
	for i := range rows {
		if rows[i].ID == stage.ID {
			rows[i] = stage
			return nil
		}
	}
	return common.NewError(common.CodeNotFound, "stage not found", nil)
}

type fakeColleges struct{ s *fakeStore }

func (r fakeColleges) Get(ctx context.Context, driveID, collegeID common.UUID) (*drive.College, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dc, ok := r.s.state.colleges[collegeKey{driveID, collegeID}]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "drive college not found", nil)
	}
	return &dc, nil
}

func (r fakeColleges) Create(ctx context.Context, c drive.College) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.colleges[collegeKey{c.DriveID, c.CollegeID}] = c
	return nil
}

func (r fakeColleges) Update(ctx context.Context, c drive.College) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := collegeKey{c.DriveID, c.CollegeID}
	if _, ok := r.s.state.colleges[key]; !ok {
		return common.NewError(common.CodeNotFound, "drive college not found", nil)
	}
	r.s.state.colleges[key] = c
	return nil
}

func (r fakeColleges) ListByDrive(ctx context.Context, driveID common.UUID) ([]drive.College, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []drive.College
	for key, dc := range r.s.state.colleges {
		if key.driveID == driveID {
			out = append(out, dc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollegeID < out[j].CollegeID })
	return out, nil
}

func (r fakeColleges) CountOpen(ctx context.Context, driveID common.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for key, dc := range r.s.state.colleges {
		if key.driveID == driveID && dc.Open() {
			count++
		}
	}
	return count, nil
}

type fakeApplications struct{ s *fakeStore }

func (r fakeApplications) GetByID(ctx context.Context, id common.UUID) (*application.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	app, ok := r.s.state.apps[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	app = cloneApp(app)
	return &app, nil
}

func (r fakeApplications) ListByIDs(ctx context.Context, driveID common.UUID, ids []common.UUID) ([]application.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []application.Application
	for _, id := range ids {
		if app, ok := r.s.state.apps[id]; ok && app.DriveID == driveID {
			out = append(out, cloneApp(app))
		}
	}
	return out, nil
}

func (r fakeApplications) ListByStudents(ctx context.Context, driveID, collegeID common.UUID, studentIDs []common.UUID) ([]application.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[common.UUID]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	var out []application.Application
	for _, app := range r.s.state.apps {
		if app.DriveID == driveID && app.CollegeID == collegeID && wanted[app.StudentID] {
			out = append(out, cloneApp(app))
		}
	}
	return out, nil
}

func (r fakeApplications) CountByStage(ctx context.Context, driveID common.UUID, stage drive.StageName) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, app := range r.s.state.apps {
		if app.DriveID == driveID && app.CurrentStage == stage && !app.IsRejected() {
			count++
		}
	}
	return count, nil
}

func (r fakeApplications) ListByStage(ctx context.Context, filter application.StageFilter) ([]application.Application, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []application.Application
	for _, app := range r.s.state.apps {
		if app.DriveID != filter.DriveID || app.CurrentStage != filter.Stage {
			continue
		}
		if !filter.CollegeID.IsZero() && app.CollegeID != filter.CollegeID {
			continue
		}
		matched = append(matched, cloneApp(app))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r fakeApplications) CountByStatus(ctx context.Context, driveID common.UUID) ([]application.StatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[collegeKey]map[application.Status]int)
	for _, app := range r.s.state.apps {
		if app.DriveID != driveID {
			continue
		}
		key := collegeKey{driveID, app.CollegeID}
		if counts[key] == nil {
			counts[key] = make(map[application.Status]int)
		}
		counts[key][app.Status]++
	}
	var out []application.StatusCount
	for key, byStatus := range counts {
		for status, n := range byStatus {
			out = append(out, application.StatusCount{CollegeID: key.collegeID, Status: status, Count: n})
		}
	}
	return out, nil
}

func (r fakeApplications) SaveAll(ctx context.Context, apps []application.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, app := range apps {
		if _, ok := r.s.state.apps[app.ID]; !ok {
			return common.NewError(common.CodeNotFound, "application not found", nil)
		}
		r.s.state.apps[app.ID] = cloneApp(app)
	}
	return nil
}

type fakeStudents struct{ s *fakeStore }

func (r fakeStudents) FindByEmails(ctx context.Context, collegeID common.UUID, emails []string) ([]student.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[string]bool, len(emails))
	for _, email := range emails {
		wanted[email] = true
	}
	var out []student.Student
	for _, st := range r.s.state.students {
		if st.CollegeID == collegeID && wanted[st.Email] {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r fakeStudents) LinkedToDrive(ctx context.Context, driveID, collegeID common.UUID, studentIDs []common.UUID) (map[common.UUID]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	linked := make(map[common.UUID]bool)
	set := r.s.state.links[collegeKey{driveID, collegeID}]
	for _, id := range studentIDs {
		if set[id] {
			linked[id] = true
		}
	}
	return linked, nil
}

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// fixture is a drive owned by one company with stages initialized and no colleges yet.
type fixture struct {
	store        *fakeStore
	metrics      *metrics.Collector
	driveID      common.UUID
	company      actor.Actor
	admin        actor.Actor
	stages       *StageService
	selection    *SelectionService
	applications *ApplicationService
	invitations  *InvitationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newFakeStore()
	collector := metrics.NewCollector()
	logger := observability.Discard()
	orgID := common.NewUUID()
	driveID := common.NewUUID()
	st.state.drives[driveID] = drive.Drive{
		ID:         driveID,
		OwnerOrgID: orgID,
		Title:      "Campus drive",
		Status:     drive.StatusActive,
		CreatedAt:  fixedNow,
		UpdatedAt:  fixedNow,
	}
	clock := func() time.Time { return fixedNow }
	f := &fixture{
		store:        st,
		metrics:      collector,
		driveID:      driveID,
		company:      actor.Actor{ID: common.NewUUID(), Role: actor.RoleCompany, OrgID: orgID},
		admin:        actor.Actor{ID: common.NewUUID(), Role: actor.RoleAdmin},
		stages:       NewStageService(st, logger, collector),
		selection:    NewSelectionService(st, logger, collector),
		applications: NewApplicationService(st, logger, collector),
		invitations:  NewInvitationService(st, logger),
	}
	f.stages.clock = clock
	f.selection.clock = clock
	f.applications.clock = clock
	f.invitations.clock = clock
	if _, err := f.stages.InitializeStages(context.Background(), driveID); err != nil {
		t.Fatalf("initialize stages: %v", err)
	}
	return f
}

// addCollege registers an accepted college and returns a COLLEGE actor owning it.
func (f *fixture) addCollege(t *testing.T, managedBy drive.ManagedBy) (common.UUID, actor.Actor) {
	t.Helper()
	collegeID := common.NewUUID()
	f.store.mu.Lock()
	f.store.state.colleges[collegeKey{f.driveID, collegeID}] = drive.College{
		ID:               common.NewUUID(),
		DriveID:          f.driveID,
		CollegeID:        collegeID,
		InvitationStatus: drive.InvitationAccepted,
		ManagedBy:        managedBy,
		CreatedAt:        fixedNow,
		UpdatedAt:        fixedNow,
	}
	f.store.mu.Unlock()
	return collegeID, actor.Actor{ID: common.NewUUID(), Role: actor.RoleCollege, CollegeID: collegeID}
}

type seeded struct {
	student student.Student
	app     application.Application
}

// addCandidates creates n linked students of collegeID with applications sitting in stage.
func (f *fixture) addCandidates(t *testing.T, collegeID common.UUID, n int, stage drive.StageName) []seeded {
	t.Helper()
	status, ok := application.StatusForStage(stage)
	if !ok {
		t.Fatalf("no status for stage %s", stage)
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	key := collegeKey{f.driveID, collegeID}
	if f.store.state.links[key] == nil {
		f.store.state.links[key] = make(map[common.UUID]bool)
	}
	out := make([]seeded, 0, n)
	for i := 0; i < n; i++ {
		st := student.Student{
			ID:        common.NewUUID(),
			CollegeID: collegeID,
			Email:     fmt.Sprintf("student%d.%s@college.test", i, collegeID.String()[:8]),
			Name:      fmt.Sprintf("Student %d", i),
		}
		app := application.Application{
			ID:           common.NewUUID(),
			DriveID:      f.driveID,
			StudentID:    st.ID,
			CollegeID:    collegeID,
			Status:       status,
			CurrentStage: stage,
			AppliedAt:    fixedNow,
			CreatedAt:    fixedNow,
			UpdatedAt:    fixedNow,
		}
		f.store.state.students[st.ID] = st
		f.store.state.links[key][st.ID] = true
		f.store.state.apps[app.ID] = app
		out = append(out, seeded{student: st, app: app})
	}
	return out
}

// moveDriveTo completes every stage before target and activates target.
func (f *fixture) moveDriveTo(t *testing.T, target drive.StageName) {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	rows := f.store.state.stages[f.driveID]
	for i := range rows {
		switch {
		case rows[i].Order < target.Order():
			rows[i].Status = drive.StageStatusCompleted
		case rows[i].Order == target.Order():
			rows[i].Status = drive.StageStatusActive
		default:
			rows[i].Status = drive.StageStatusPending
		}
	}
	d := f.store.state.drives[f.driveID]
	d.CurrentStage = target
	f.store.state.drives[f.driveID] = d
}

func emailsOf(items []seeded) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.student.Email)
	}
	return out
}

func idsOf(items []seeded) []common.UUID {
	out := make([]common.UUID, 0, len(items))
	for _, item := range items {
		out = append(out, item.app.ID)
	}
	return out
}

func assertCode(t *testing.T, err error, code common.Code, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", code, reason)
	}
	if !common.Is(err, code) {
		t.Fatalf("expected code %s, got %v", code, err)
	}
	if reason != "" && !common.HasReason(err, reason) {
		t.Fatalf("expected reason %s, got %v", reason, err)
	}
}
