package permission

// ロールID。初回起動時にシードされ、実行時には変更されない。
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleViewer     = "viewer"
)

// RoleDefinition はシード対象のロール定義。
type RoleDefinition struct {
	ID          string
	Name        string
	Permissions []Permission
}

// DefaultRoles はシード対象の4ロールを返す。
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			ID:          RoleSuperAdmin,
			Name:        "Super Admin",
			Permissions: All(),
		},
		{
			ID:          RoleAdmin,
			Name:        "Admin",
			Permissions: without(All(), UsersDelete, SettingsEdit),
		},
		{
			ID:   RoleEditor,
			Name: "Editor",
			Permissions: []Permission{
				DashboardView,
				ContentView, ContentEdit,
				BlogView, BlogCreate, BlogEdit, BlogPublish,
				MediaView, MediaUpload,
				LeadsView,
				ApplicationsView,
			},
		},
		{
			ID:   RoleViewer,
			Name: "Viewer",
			Permissions: []Permission{
				DashboardView,
				ContentView,
				BlogView,
				LeadsView,
				ApplicationsView,
				MediaView,
			},
		},
	}
}

func without(perms []Permission, excluded ...Permission) []Permission {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if !Has(excluded, p) {
			out = append(out, p)
		}
	}
	return out
}
