package domain

import "strings"

// Role is the logical category a connection is registered under. It
// determines which broadcasts the connection receives.
type Role string

const (
	// RoleScreen is a kiosk display screen addressed by an external identity.
	RoleScreen Role = "screen"
	// RoleWAStatus is a WhatsApp messaging-status dashboard.
	RoleWAStatus Role = "wa-status"
	// RoleAuth is a QR-authentication viewer.
	RoleAuth Role = "auth"
	// RoleDailyAppointments is the live daily-appointments view.
	RoleDailyAppointments Role = "daily-appointments"
	// RoleGeneric is the fallback for clients with no recognized role.
	RoleGeneric Role = "generic"
)

var knownRoles = map[Role]struct{}{
	RoleScreen:            {},
	RoleWAStatus:          {},
	RoleAuth:              {},
	RoleDailyAppointments: {},
	RoleGeneric:           {},
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// ParseRole maps a client-supplied role name to a Role. Unknown names fall
// back to RoleGeneric rather than being rejected.
func ParseRole(s string) Role {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if r.Valid() {
		return r
	}
	return RoleGeneric
}

// ParseRoles parses a comma-separated clientType value into a deduplicated
// role list. An empty value yields a single RoleGeneric entry, so every
// connection always belongs to at least one role.
func ParseRoles(csv string) []Role {
	seen := make(map[Role]struct{})
	var roles []Role
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r := ParseRole(part)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	if len(roles) == 0 {
		roles = []Role{RoleGeneric}
	}
	return roles
}
