// Package policy decides which actor may act on a drive or on one college's slice of it.
// Both the stage controller and the selection engine authorize through this package only.
package policy

import (
	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
	"campusdrive/internal/domain/drive"
)

type Mode int

const (
	ReadOnly Mode = iota
	Mutating
)

const (
	ReasonManagementNotConfigured = "management_not_configured"
	ReasonNotManager              = "not_manager"
	ReasonNotOwner                = "not_owner"
	ReasonRoleNotPermitted        = "role_not_permitted"
)

// Authorize applies the managed-by rules in order: unset management denies everyone,
// ADMIN management admits only admins, COLLEGE management admits the owning college
// and, for reads only, an admin override.
func Authorize(dc drive.College, a actor.Actor, mode Mode) error {
	switch dc.ManagedBy {
	case drive.ManagedByAdmin:
		if a.IsAdmin() {
			return nil
		}
		return forbidden(ReasonNotManager, "college is managed by admin")
	case drive.ManagedByCollege:
		if a.OwnsCollege(dc.CollegeID) {
			return nil
		}
		if mode == ReadOnly && a.IsAdmin() {
			return nil
		}
		return forbidden(ReasonNotManager, "college is managed by the college")
	default:
		return forbidden(ReasonManagementNotConfigured, "management not configured")
	}
}

// Policy is the capability set of one role.
type Policy interface {
	// CanRead guards drive data; dc narrows the read to one college when set.
	CanRead(d drive.Drive, dc *drive.College) error
	CanAdvanceStage(d drive.Drive) error
	CanSubmitPhase(dc drive.College) error
	CanReject(d drive.Drive) error
}

func For(a actor.Actor) Policy {
	switch a.Role {
	case actor.RoleCompany:
		return companyPolicy{actor: a}
	case actor.RoleCollege:
		return collegePolicy{actor: a}
	case actor.RoleAdmin:
		return adminPolicy{actor: a}
	default:
		return denyPolicy{}
	}
}

type companyPolicy struct {
	actor actor.Actor
}

func (p companyPolicy) owns(d drive.Drive) error {
	if p.actor.OwnsOrg(d.OwnerOrgID) {
		return nil
	}
	return forbidden(ReasonNotOwner, "drive belongs to another company")
}

func (p companyPolicy) CanRead(d drive.Drive, _ *drive.College) error {
	return p.owns(d)
}

func (p companyPolicy) CanAdvanceStage(d drive.Drive) error {
	return p.owns(d)
}

func (p companyPolicy) CanSubmitPhase(drive.College) error {
	return forbidden(ReasonRoleNotPermitted, "company cannot submit selection phases")
}

func (p companyPolicy) CanReject(d drive.Drive) error {
	return p.owns(d)
}

type collegePolicy struct {
	actor actor.Actor
}

func (p collegePolicy) CanRead(_ drive.Drive, dc *drive.College) error {
	if dc == nil {
		return forbidden(ReasonRoleNotPermitted, "college reads must be scoped to a college")
	}
	return Authorize(*dc, p.actor, ReadOnly)
}

func (p collegePolicy) CanAdvanceStage(drive.Drive) error {
	return forbidden(ReasonRoleNotPermitted, "college cannot change drive stages")
}

func (p collegePolicy) CanSubmitPhase(dc drive.College) error {
	return Authorize(dc, p.actor, Mutating)
}

func (p collegePolicy) CanReject(drive.Drive) error {
	return forbidden(ReasonRoleNotPermitted, "college cannot reject applications")
}

type adminPolicy struct {
	actor actor.Actor
}

func (p adminPolicy) CanRead(_ drive.Drive, dc *drive.College) error {
	if dc == nil {
		return nil
	}
	return Authorize(*dc, p.actor, ReadOnly)
}

func (p adminPolicy) CanAdvanceStage(drive.Drive) error {
	return nil
}

func (p adminPolicy) CanSubmitPhase(dc drive.College) error {
	return Authorize(dc, p.actor, Mutating)
}

func (p adminPolicy) CanReject(drive.Drive) error {
	return nil
}

type denyPolicy struct{}

func (denyPolicy) CanRead(drive.Drive, *drive.College) error { return unknownRole() }
func (denyPolicy) CanAdvanceStage(drive.Drive) error          { return unknownRole() }
func (denyPolicy) CanSubmitPhase(drive.College) error         { return unknownRole() }
func (denyPolicy) CanReject(drive.Drive) error                { return unknownRole() }

func unknownRole() error {
	return forbidden(ReasonRoleNotPermitted, "unknown role")
}

func forbidden(reason, message string) error {
	return common.NewError(common.CodeForbidden, message, nil).WithReason(reason)
}
