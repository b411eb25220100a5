package domain

import "strings"

// Role names a broadcast room. A connection belongs to at most one.
type Role string

const (
	RoleNone     Role = ""
	RoleFront    Role = "front"
	RoleBar      Role = "bar"
	RoleAdmin    Role = "admin"
	RoleObserver Role = "observer"
)

// Roles is the closed set of joinable rooms, in display order.
var Roles = []Role{RoleFront, RoleBar, RoleAdmin, RoleObserver}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return RoleNone, ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleFront, RoleBar, RoleAdmin, RoleObserver:
		return true
	}
	return false
}

func (r Role) DisplayName() string {
	switch r {
	case RoleFront:
		return "Front of house"
	case RoleBar:
		return "Bar"
	case RoleAdmin:
		return "Admin"
	case RoleObserver:
		return "Observer"
	}
	return string(r)
}
