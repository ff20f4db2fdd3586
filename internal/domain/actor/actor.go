package actor

import (
	"strings"

	"campusdrive/internal/common"
)

type Role string

const (
	RoleCompany Role = "COMPANY"
	RoleCollege Role = "COLLEGE"
	RoleAdmin   Role = "ADMIN"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleCompany:
		return RoleCompany, true
	case RoleCollege:
		return RoleCollege, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Actor is the caller identity handed over by the identity resolver.
// OrgID is set for COMPANY actors, CollegeID for COLLEGE actors.
type Actor struct {
	ID        common.UUID `json:"id"`
	Role      Role        `json:"role"`
	OrgID     common.UUID `json:"org_id,omitempty"`
	CollegeID common.UUID `json:"college_id,omitempty"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) OwnsCollege(collegeID common.UUID) bool {
	return a.Role == RoleCollege && a.CollegeID != "" && a.CollegeID == collegeID
}

func (a Actor) OwnsOrg(orgID common.UUID) bool {
	return a.Role == RoleCompany && a.OrgID != "" && a.OrgID == orgID
}
