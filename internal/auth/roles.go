package auth

import "strings"

// Role is the closed set of user roles.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// NormalizeRole parses a role name. The legacy "teknisi" spelling maps to technician.
func NormalizeRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RoleAdmin):
		return RoleAdmin, true
	case string(RoleTechnician), "teknisi":
		return RoleTechnician, true
	default:
		return "", false
	}
}

// RoleAtLeast reports whether actual satisfies required.
func RoleAtLeast(actual, required Role) bool {
	a, ok := roleRank(actual)
	if !ok {
		return false
	}
	r, ok := roleRank(required)
	if !ok {
		return false
	}
	return a >= r
}

func roleRank(role Role) (int, bool) {
	switch role {
	case RoleTechnician:
		return 1, true
	case RoleAdmin:
		return 2, true
	default:
		return 0, false
	}
}
