// internal/acl/policy.go
//
// Role → permission matrix.
//
// Context
// -------
// Two roles exist and the set of guarded actions is small, so the matrix is
// code rather than tables.  Components name what they guard with a
// (component, action) pair:
//
//	component   action   superadmin  editor
//	content     read     yes         yes
//	content     write    yes         yes
//	assets      write    yes         yes
//	settings    read     yes         yes
//	settings    write    yes         no
//
// Anything not listed is denied.

package acl

import "github.com/yanizio/siteadmin/internal/auth"

// Component and action names used with RequirePermission.
const (
	Content  = "content"
	Assets   = "assets"
	Settings = "settings"

	Read  = "read"
	Write = "write"
)

var policy = map[auth.Role]map[string]bool{
	auth.RoleSuperadmin: {
		Content + ":" + Read:   true,
		Content + ":" + Write:  true,
		Assets + ":" + Write:   true,
		Settings + ":" + Read:  true,
		Settings + ":" + Write: true,
	},
	auth.RoleEditor: {
		Content + ":" + Read:  true,
		Content + ":" + Write: true,
		Assets + ":" + Write:  true,
		Settings + ":" + Read: true,
	},
}

// Allowed reports whether role may perform action on component.
func Allowed(role auth.Role, component, action string) bool {
	return policy[role][component+":"+action]
}
