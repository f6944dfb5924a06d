package tracker

import (
	"fmt"
	"strings"
)

// Role is the single source of a user's visibility scope. There is no
// permissions table.
type Role string

const (
	RoleUser       Role = "RUSER"
	RoleTeamLead   Role = "TEAML"
	RoleAdmin      Role = "ADMIN"
	RoleSuper      Role = "SUPER"
	RoleIndustrial Role = "INENG"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleTeamLead, RoleAdmin, RoleSuper, RoleIndustrial:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "Regular User"
	case RoleTeamLead:
		return "Team Leader"
	case RoleAdmin:
		return "Administrator"
	case RoleSuper:
		return "Super User"
	case RoleIndustrial:
		return "Industrial Engineering"
	default:
		return string(r)
	}
}

// IsOwnAdministrator is true for the roles that own an authorization link.
func (r Role) IsOwnAdministrator() bool {
	switch r {
	case RoleSuper, RoleAdmin:
		return true
	default:
		return false
	}
}

// ManagesTeam is true for the roles that see a whole team.
func (r Role) ManagesTeam() bool {
	switch r {
	case RoleSuper, RoleAdmin, RoleTeamLead:
		return true
	default:
		return false
	}
}

// CanCloseApprovals reports whether the role may close pending approvals
// without an explicit grant.
func (r Role) CanCloseApprovals() bool {
	return r.IsOwnAdministrator()
}
