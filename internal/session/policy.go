package session

import "github.com/hitoshi/folio/internal/model"

// HasRole はユーザーのロールがrolesのいずれかに含まれる場合にtrueを返す。
// ユーザーがnil、またはrolesが空の場合は常にfalse。
func HasRole(user *model.User, roles ...model.Role) bool {
	if user == nil {
		return false
	}
	for _, r := range roles {
		if user.Role == r {
			return true
		}
	}
	return false
}

// CanManageContent はコンテンツ管理（作成・更新・削除）が可能かを返す。
// owner と admin のみ。未知のロールは昇格権限なしとして扱う。
func CanManageContent(user *model.User) bool {
	return HasRole(user, model.RoleOwner, model.RoleAdmin)
}

// IsOwner はユーザーがownerかを返す。
func IsOwner(user *model.User) bool {
	return HasRole(user, model.RoleOwner)
}

// IsAdmin はユーザーがadminかを返す。
func IsAdmin(user *model.User) bool {
	return HasRole(user, model.RoleAdmin)
}
