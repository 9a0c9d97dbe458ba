package directory

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// RoleAdministrator marks a site administrator.
const RoleAdministrator = "administrator"

// ErrProfileNotFound is returned when a user id has no profile.
var ErrProfileNotFound = eris.New("profile not found")

// Profile is the subset of a user profile the landing pages rely on.
type Profile struct {
	UserID      int64    `json:"id"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	JobTitle    string   `json:"job_title"`
	HeadshotRef string   `json:"headshot_ref"`
	Roles       []string `json:"roles"`
	// AssignedLoanOfficerID is set for realtors attached to a loan officer.
	AssignedLoanOfficerID int64 `json:"assigned_loan_officer_id"`
}

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// HasRole reports whether the profile carries the role.
func (p Profile) HasRole(role string) bool {
	for _, candidate := range p.Roles {
		if strings.EqualFold(candidate, role) {
			return true
		}
	}
	return false
}

// Directory resolves user identities, roles and group memberships.
type Directory interface {
	GetProfile(ctx context.Context, userID int64) (Profile, error)
	IsAdministrator(ctx context.Context, userID int64) (bool, error)
	IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error)
}
