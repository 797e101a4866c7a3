package auth

import "slices"

// Requirement is the static access rule an endpoint declares.
type Requirement struct {
	Name  string
	Roles []Role
	// TenantScoped resources must belong to the caller's community.
	TenantScoped bool
	// OwnerScoped resources must belong to the caller, except that an
	// administrator passes when the requirement is also tenant scoped.
	OwnerScoped bool
}

var (
	// AdminOnly covers community management: notifications, contracts,
	// expenses, users, parcels and statistics.
	AdminOnly = Requirement{
		Name:         "admin-only",
		Roles:        []Role{RoleAdministrador},
		TenantScoped: true,
	}

	// OwnerOrAdmin covers a single parcel or payment: its copropietario or
	// an administrator of the same community.
	OwnerOrAdmin = Requirement{
		Name:         "owner-or-admin",
		Roles:        []Role{RoleAdministrador, RoleCopropietario},
		TenantScoped: true,
		OwnerScoped:  true,
	}

	// CommunityMember covers community-wide reads such as the parcel map.
	CommunityMember = Requirement{
		Name:         "community-member",
		Roles:        []Role{RoleAdministrador, RoleCopropietario},
		TenantScoped: true,
	}

	// Self covers the caller's own profile, parcels and payments.
	Self = Requirement{
		Name:        "self",
		Roles:       []Role{RoleAdministrador, RoleCopropietario},
		OwnerScoped: true,
	}
)

// Allows reports whether role is listed by the requirement.
func (r Requirement) Allows(role Role) bool {
	return role.Valid() && slices.Contains(r.Roles, role)
}
