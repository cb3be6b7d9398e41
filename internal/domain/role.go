package domain

// Role enumerates authorization roles for streaming and ticket mutation.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleSupport    Role = "SUPPORT"
	RoleUser       Role = "USER"
)

// roleLevels fixes the total ordering of role capability at startup.
var roleLevels = map[Role]int{
	RoleUser:       1,
	RoleSupport:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// Level returns the integer permission level for the role; unknown roles are 0.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether the role is one of the fixed set.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// IsStaff reports whether the role belongs to the administrative audience.
func (r Role) IsStaff() bool {
	return r.Level() >= roleLevels[RoleSupport]
}

// StaffRoles lists the roles that receive administrative broadcasts.
func StaffRoles() []Role {
	return []Role{RoleSupport, RoleAdmin, RoleSuperAdmin}
}

// AllRoles lists every role in ascending capability order.
func AllRoles() []Role {
	return []Role{RoleUser, RoleSupport, RoleAdmin, RoleSuperAdmin}
}
