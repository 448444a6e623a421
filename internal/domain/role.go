package domain

import (
	"fmt"
	"strings"
)

// Role is the authorization rank of a user.
// Roles form a total order: RoleViewer < RoleManager < RoleAdmin.
type Role int

const (
	// RoleViewer can read the catalog and reports.
	RoleViewer Role = iota + 1

	// RoleManager can additionally mutate the catalog and send reports.
	RoleManager

	// RoleAdmin can additionally manage users.
	RoleAdmin
)

// String returns the canonical upper-case role name.
func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "VIEWER"
	case RoleManager:
		return "MANAGER"
	case RoleAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid returns true if r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleViewer && r <= RoleAdmin
}

// AtLeast reports whether r ranks at or above required.
func (r Role) AtLeast(required Role) bool {
	return r.Valid() && r >= required
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VIEWER":
		return RoleViewer, nil
	case "MANAGER":
		return RoleManager, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: role %d", ErrInvalidArgument, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
