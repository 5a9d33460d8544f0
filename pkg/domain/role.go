package domain

import dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"

// Role is the caller capability attached to an authenticated identity. The
// engine performs exactly one explicit role check at each boundary instead of
// re-deriving admin bypasses per operation.
type Role string

const (
	RoleInvestor      Role = "investor"
	RoleBusinessOwner Role = "business_owner"
	RoleAdmin         Role = "admin"
)

var validRoles = map[Role]bool{
	RoleInvestor:      true,
	RoleBusinessOwner: true,
	RoleAdmin:         true,
}

// ParseRole constructs a Role from external input (token claims).
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return r, nil
}

// IsValid checks membership in the supported role set.
func (r Role) IsValid() bool { return validRoles[r] }

// CanArbitrate reports whether the role may release, refund, or resolve
// disputes on escrows it does not own.
func (r Role) CanArbitrate() bool { return r == RoleAdmin }

func (r Role) String() string { return string(r) }
