package shared

import (
	"fmt"
	"strings"
)

// Role is the coarse role attached to an authenticated actor by the session gateway.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleKitchen Role = "kitchen"
	RoleOther   Role = "other"
)

// ParseRole normalises a raw role string. Unknown roles map to RoleOther.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleKitchen:
		return RoleKitchen
	default:
		return RoleOther
	}
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   int64
	Role Role
}

// Valid reports whether the actor carries an identity.
func (a Actor) Valid() bool {
	return a.ID > 0
}

func (a Actor) String() string {
	return fmt.Sprintf("%s#%d", a.Role, a.ID)
}

// IsAdmin is the administrator predicate. Administrators hold unlimited
// approval authority regardless of the kitchen permission registry.
func IsAdmin(a Actor) bool {
	return a.Valid() && a.Role == RoleAdmin
}

// HasRole reports whether the actor holds any of the given roles.
func HasRole(a Actor, roles ...Role) bool {
	if !a.Valid() {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
