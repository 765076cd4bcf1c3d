package domain

// Role is the closed set of principal roles. It is fixed when the principal
// is created and never changes afterwards.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleCustomer  Role = "customer"
)

// ParseRole maps a wire value onto a Role, rejecting anything outside the
// closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOrganizer:
		return RoleOrganizer, nil
	case RoleCustomer:
		return RoleCustomer, nil
	default:
		return "", ErrInvalidInput
	}
}

func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleCustomer
}
