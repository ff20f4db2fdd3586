package drive

import (
	"time"

	"campusdrive/internal/common"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

type Drive struct {
	ID           common.UUID `json:"id"`
	OwnerOrgID   common.UUID `json:"owner_org_id"`
	Title        string      `json:"title"`
	Status       Status      `json:"status"`
	CurrentStage StageName   `json:"current_stage"`
	IsLocked     bool        `json:"is_locked"`
	LockedAt     *time.Time  `json:"locked_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Lock freezes the drive permanently.
func (d *Drive) Lock(now time.Time) {
	locked := now
	d.IsLocked = true
	d.LockedAt = &locked
	d.Status = StatusClosed
	d.UpdatedAt = now
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRejected InvitationStatus = "REJECTED"
)

type ManagedBy string

const (
	ManagedByNone    ManagedBy = ""
	ManagedByCollege ManagedBy = "COLLEGE"
	ManagedByAdmin   ManagedBy = "ADMIN"
)

func ParseManagedBy(value string) (ManagedBy, bool) {
	switch ManagedBy(value) {
	case ManagedByCollege:
		return ManagedByCollege, true
	case ManagedByAdmin:
		return ManagedByAdmin, true
	default:
		return ManagedByNone, false
	}
}

// College is one college's participation in a drive along with its delegated authority.
type College struct {
	ID                       common.UUID      `json:"id"`
	DriveID                  common.UUID      `json:"drive_id"`
	CollegeID                common.UUID      `json:"college_id"`
	InvitationStatus         InvitationStatus `json:"invitation_status"`
	ManagedBy                ManagedBy        `json:"managed_by,omitempty"`
	Finalized                bool             `json:"finalized"`
	FinalizedAt              *time.Time       `json:"finalized_at,omitempty"`
	FinalizedBy              common.UUID      `json:"finalized_by,omitempty"`
	ShortlistSubmitted       bool             `json:"shortlist_submitted"`
	ShortlistSubmittedAt     *time.Time       `json:"shortlist_submitted_at,omitempty"`
	ShortlistedCount         int              `json:"shortlisted_count"`
	InterviewListSubmitted   bool             `json:"interview_list_submitted"`
	InterviewListSubmittedAt *time.Time       `json:"interview_list_submitted_at,omitempty"`
	InterviewedCount         int              `json:"interviewed_count"`
	SelectedCount            int              `json:"selected_count"`
	CreatedAt                time.Time        `json:"created_at"`
	UpdatedAt                time.Time        `json:"updated_at"`
}

func (c College) Accepted() bool {
	return c.InvitationStatus == InvitationAccepted
}

// Open reports whether the college still counts against the drive auto-lock.
func (c College) Open() bool {
	return c.Accepted() && !c.Finalized
}
