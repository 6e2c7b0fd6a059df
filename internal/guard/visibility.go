package guard

import "github.com/hitoshi/folio/internal/session"

// Affordance は権限に応じて表示を切り替えるUI要素。
type Affordance int

const (
	// ManageContent はコンテンツの作成・編集・削除リンク。
	ManageContent Affordance = iota
	// Dashboard は管理ダッシュボードへの導線。
	Dashboard
	// Account はパスワード変更などのアカウント設定。
	Account
	// UserAdmin はユーザーのロール管理。
	UserAdmin
)

// affordanceNames はテンプレートから名前で参照するための対応表。
var affordanceNames = map[string]Affordance{
	"manage_content": ManageContent,
	"dashboard":      Dashboard,
	"account":        Account,
	"user_admin":     UserAdmin,
}

// Visible はUI要素を表示してよいかを返す。
// 管理系の要素は認証済みであることではなくロールで判定するため、
// 認証済みのviewerには表示されない。
func Visible(snap session.Snapshot, a Affordance) bool {
	switch a {
	case ManageContent, Dashboard:
		return snap.CanManageContent()
	case Account:
		return snap.IsAuthenticated()
	case UserAdmin:
		return snap.IsOwner()
	default:
		return false
	}
}

// VisibleByName は名前で指定されたUI要素の表示可否を返す。未知の名前はfalse。
func VisibleByName(snap session.Snapshot, name string) bool {
	a, ok := affordanceNames[name]
	if !ok {
		return false
	}
	return Visible(snap, a)
}
