package permission

import (
	"strings"
	"testing"
)

func TestHas(t *testing.T) {
	perms := []Permission{"content:view", "content:edit"}

	if !Has(perms, "content:edit") {
		t.Error("Has(content:edit) = false, want true")
	}
	if Has(perms, "content:delete") {
		t.Error("Has(content:delete) = true, want false")
	}
}

func TestHasAll(t *testing.T) {
	perms := []Permission{"content:view", "content:edit"}

	tests := []struct {
		name     string
		required []Permission
		want     bool
	}{
		{"全て保持", []Permission{"content:view", "content:edit"}, true},
		{"一部欠落", []Permission{"content:view", "content:delete"}, false},
		{"順序は無関係", []Permission{"content:edit", "content:view"}, true},
		{"重複は無害", []Permission{"content:view", "content:view"}, true},
		{"空", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAll(perms, tt.required...); got != tt.want {
				t.Errorf("HasAll(%v) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}

func TestHasAny(t *testing.T) {
	perms := []Permission{"content:view", "content:edit"}

	tests := []struct {
		name     string
		required []Permission
		want     bool
	}{
		{"1つ一致", []Permission{"content:delete", "content:edit"}, true},
		{"一致なし", []Permission{"content:delete", "users:create"}, false},
		{"空", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAny(perms, tt.required...); got != tt.want {
				t.Errorf("HasAny(%v) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}

func TestHas_DuplicatePermissionsAreHarmless(t *testing.T) {
	perms := []Permission{"blog:view", "blog:view"}
	if !Has(perms, "blog:view") {
		t.Error("expected duplicated permission to be found")
	}
}

func TestParse(t *testing.T) {
	p, ok := Parse("users:create")
	if !ok || p != UsersCreate {
		t.Errorf("Parse(users:create) = (%q, %v), want (%q, true)", p, ok, UsersCreate)
	}

	if _, ok := Parse("users:*"); ok {
		t.Error("wildcards must not parse")
	}
}

func TestStrings(t *testing.T) {
	got := Strings([]Permission{BlogView, MediaUpload})
	if len(got) != 2 || got[0] != "blog:view" || got[1] != "media:upload" {
		t.Errorf("Strings() = %v", got)
	}
}

func TestDefaultRoles_SuperAdminHasEverything(t *testing.T) {
	roles := DefaultRoles()
	if len(roles) != 4 {
		t.Fatalf("len(DefaultRoles()) = %d, want 4", len(roles))
	}
	if roles[0].ID != RoleSuperAdmin {
		t.Fatalf("roles[0].ID = %q, want %q", roles[0].ID, RoleSuperAdmin)
	}
	if !HasAll(roles[0].Permissions, All()...) {
		t.Error("super_admin should hold every permission")
	}
}

func TestDefaultRoles_AdminLacksDestructiveUserAndSettingsPermissions(t *testing.T) {
	admin := findRole(t, RoleAdmin)
	if HasAny(admin.Permissions, UsersDelete, SettingsEdit) {
		t.Errorf("admin permissions = %v, should not contain users:delete or settings:edit", admin.Permissions)
	}
	if !Has(admin.Permissions, UsersCreate) {
		t.Error("admin should be able to create users")
	}
}

func TestDefaultRoles_ViewerIsReadOnly(t *testing.T) {
	viewer := findRole(t, RoleViewer)
	for _, p := range viewer.Permissions {
		if !strings.HasSuffix(string(p), ":view") {
			t.Errorf("viewer has non-view permission %q", p)
		}
	}
	if Has(viewer.Permissions, UsersCreate) {
		t.Error("viewer must not have users:create")
	}
}

func TestDefaultRoles_AllPermissionsAreInCatalogue(t *testing.T) {
	for _, r := range DefaultRoles() {
		for _, p := range r.Permissions {
			if _, ok := Parse(string(p)); !ok {
				t.Errorf("role %s has unknown permission %q", r.ID, p)
			}
		}
	}
}

func findRole(t *testing.T, id string) RoleDefinition {
	t.Helper()
	for _, r := range DefaultRoles() {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("role %q not found", id)
	return RoleDefinition{}
}
