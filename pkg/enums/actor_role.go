package enums

import "fmt"

// ActorRole is the job an actor performs on a terminal. Identity itself comes
// from the auth layer in front of this service; the core only needs the role
// for capability checks and the name for audit attribution.
type ActorRole string

const (
	ActorRoleWaiter  ActorRole = "waiter"
	ActorRoleChef    ActorRole = "chef"
	ActorRoleCashier ActorRole = "cashier"
	ActorRoleManager ActorRole = "manager"
)

var validActorRoles = []ActorRole{
	ActorRoleWaiter,
	ActorRoleChef,
	ActorRoleCashier,
	ActorRoleManager,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
