// Package permission は管理画面の権限カタログと権限判定を提供する。
// 権限は不透明な文字列識別子であり、階層やワイルドカードは持たない。
package permission

// Permission は管理画面の操作を表す権限識別子。
type Permission string

// 管理画面で扱う権限の一覧。
const (
	DashboardView Permission = "dashboard:view"

	ContentView   Permission = "content:view"
	ContentEdit   Permission = "content:edit"
	ContentDelete Permission = "content:delete"

	BlogView    Permission = "blog:view"
	BlogCreate  Permission = "blog:create"
	BlogEdit    Permission = "blog:edit"
	BlogDelete  Permission = "blog:delete"
	BlogPublish Permission = "blog:publish"

	LeadsView   Permission = "leads:view"
	LeadsEdit   Permission = "leads:edit"
	LeadsDelete Permission = "leads:delete"
	LeadsExport Permission = "leads:export"

	ApplicationsView   Permission = "applications:view"
	ApplicationsEdit   Permission = "applications:edit"
	ApplicationsDelete Permission = "applications:delete"

	MediaView   Permission = "media:view"
	MediaUpload Permission = "media:upload"
	MediaDelete Permission = "media:delete"

	UsersView   Permission = "users:view"
	UsersCreate Permission = "users:create"
	UsersEdit   Permission = "users:edit"
	UsersDelete Permission = "users:delete"

	SettingsView Permission = "settings:view"
	SettingsEdit Permission = "settings:edit"

	AuditView Permission = "audit:view"
)

// All はカタログに定義された全権限を定義順で返す。
func All() []Permission {
	return []Permission{
		DashboardView,
		ContentView, ContentEdit, ContentDelete,
		BlogView, BlogCreate, BlogEdit, BlogDelete, BlogPublish,
		LeadsView, LeadsEdit, LeadsDelete, LeadsExport,
		ApplicationsView, ApplicationsEdit, ApplicationsDelete,
		MediaView, MediaUpload, MediaDelete,
		UsersView, UsersCreate, UsersEdit, UsersDelete,
		SettingsView, SettingsEdit,
		AuditView,
	}
}

// Parse は文字列をカタログ内の権限に変換する。
// カタログに存在しない場合はfalseを返す。
func Parse(s string) (Permission, bool) {
	for _, p := range All() {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Strings は権限リストを文字列スライスに変換する。
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Has はpermsにpが含まれるかを判定する。
func Has(perms []Permission, p Permission) bool {
	for _, have := range perms {
		if have == p {
			return true
		}
	}
	return false
}

// HasAny はrequiredのうち少なくとも1つがpermsに含まれるかを判定する。
// requiredが空の場合はfalseを返す。
func HasAny(perms []Permission, required ...Permission) bool {
	for _, p := range required {
		if Has(perms, p) {
			return true
		}
	}
	return false
}

// HasAll はrequiredのすべてがpermsに含まれるかを判定する。
// requiredが空の場合はtrueを返す。
func HasAll(perms []Permission, required ...Permission) bool {
	for _, p := range required {
		if !Has(perms, p) {
			return false
		}
	}
	return true
}
