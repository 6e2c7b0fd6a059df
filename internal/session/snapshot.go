package session

import "github.com/hitoshi/folio/internal/model"

// Snapshot はある時点のセッション状態のイミュータブルなコピー。
// ルートガードやテンプレートはストアを直接参照せず、リクエストごとのSnapshotを使う。
type Snapshot struct {
	token   string
	user    *model.User
	loading bool
}

// NewSnapshot は指定されたトークンとユーザーからSnapshotを生成する。
func NewSnapshot(token string, user *model.User) Snapshot {
	return Snapshot{token: token, user: user.Clone()}
}

// Token は現在のトークンを返す。未認証の場合は空文字列。
func (s Snapshot) Token() string { return s.token }

// User は現在のユーザーのコピーを返す。存在しない場合はnil。
func (s Snapshot) User() *model.User { return s.user.Clone() }

// IsAuthenticated はトークンを保持しているかを返す。
func (s Snapshot) IsAuthenticated() bool { return s.token != "" }

// IsLoading は認証操作が進行中かを返す。
func (s Snapshot) IsLoading() bool { return s.loading }

// UserID はユーザーIDを返す。ユーザーが存在しない場合は空文字列。
func (s Snapshot) UserID() string {
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Email はユーザーのメールアドレスを返す。
func (s Snapshot) Email() string {
	if s.user == nil {
		return ""
	}
	return s.user.Email
}

// Role はユーザーのロールを返す。ユーザーが存在しない場合は空。
func (s Snapshot) Role() model.Role {
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

func (s Snapshot) HasRole(roles ...model.Role) bool { return HasRole(s.user, roles...) }
func (s Snapshot) CanManageContent() bool           { return CanManageContent(s.user) }
func (s Snapshot) IsOwner() bool                    { return IsOwner(s.user) }
func (s Snapshot) IsAdmin() bool                    { return IsAdmin(s.user) }
