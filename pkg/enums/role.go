package enums

import "slices"

// Role is the actor role carried in access tokens.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleVolunteer Role = "volunteer"
	RoleRecipient Role = "recipient"
)

var validRoles = []Role{
	RoleDonor,
	RoleVolunteer,
	RoleRecipient,
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return slices.Contains(validRoles, r)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse("role", value, validRoles)
}
