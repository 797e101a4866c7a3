package auth

import (
	"errors"
	"strings"
)

// Role is the canonical role carried by an Identity.
type Role string

const (
	RoleAdministrador Role = "administrador"
	RoleCopropietario Role = "copropietario"
)

// ErrUnknownRole is returned by ParseRole for strings outside the alias table.
var ErrUnknownRole = errors.New("auth: unknown role")

var roleAliases = map[string]Role{
	"administrador":  RoleAdministrador,
	"administrator":  RoleAdministrador,
	"admin":          RoleAdministrador,
	"adm":            RoleAdministrador,
	"copropietario":  RoleCopropietario,
	"co-propietario": RoleCopropietario,
	"propietario":    RoleCopropietario,
	"owner":          RoleCopropietario,
	"coowner":        RoleCopropietario,
	"co-owner":       RoleCopropietario,
}

// ParseRole maps any accepted spelling of a role onto its canonical value.
// It is the only place role strings are interpreted.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if r, ok := roleAliases[key]; ok {
		return r, nil
	}
	return "", ErrUnknownRole
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	return r == RoleAdministrador || r == RoleCopropietario
}

func (r Role) String() string { return string(r) }

// IsAdmin reports whether r is the administrator role.
func (r Role) IsAdmin() bool { return r == RoleAdministrador }
