// Package handler はポートフォリオクライアントのHTTPハンドラーとルーティングを提供する。
// ページはサーバーサイドで描画し、権限判定はguardミドルウェアとSnapshotに委ねる。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/folio/internal/apiclient"
	"github.com/hitoshi/folio/internal/guard"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/session"
	"github.com/hitoshi/folio/internal/worker/linkcheck"
)

// fallbackMessage はバックエンドがメッセージを返さなかった場合の表示文言。
const fallbackMessage = "An unexpected error occurred"

// SessionStore はハンドラーが必要とするセッションストアの操作。
type SessionStore interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, token string, user *model.User) error
	Logout(ctx context.Context) error
	SetUser(ctx context.Context, user *model.User) error
	TryBeginLoading() bool
	SetLoading(loading bool)
}

// AuthServiceInterface はバックエンドの認証・ユーザー管理API。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.AuthResponse, error)
	Register(ctx context.Context, email, password string) (*model.AuthResponse, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, resetToken, password string) (*model.AuthResponse, error)
	UpdatePassword(ctx context.Context, currentPassword, newPassword string) (*model.AuthResponse, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserRole(ctx context.Context, userID string, role model.Role) (*model.User, error)
}

// ContentServiceInterface はバックエンドのコンテンツAPI。
type ContentServiceInterface interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListSkills(ctx context.Context) ([]model.Skill, error)
	ListExperience(ctx context.Context) ([]model.ExperienceItem, error)
	ListLearning(ctx context.Context) ([]model.LearningItem, error)
	GetProfile(ctx context.Context) (*model.Profile, error)

	SaveProject(ctx context.Context, id string, p model.Project) error
	SaveSkill(ctx context.Context, id string, s model.Skill) error
	SaveExperience(ctx context.Context, id string, e model.ExperienceItem) error
	SaveLearning(ctx context.Context, id string, l model.LearningItem) error
	SaveProfile(ctx context.Context, p model.Profile) error
	Delete(ctx context.Context, kind model.ContentKind, id string) error
}

// LinkCheckerInterface はプロジェクトリンクの疎通確認。
type LinkCheckerInterface interface {
	CheckAll(ctx context.Context, targets []linkcheck.Target) []model.LinkStatus
}

// landingPath はログイン直後の遷移先を返す。
// コンテンツ管理権限を持つユーザーはダッシュボード、それ以外はプロジェクト一覧。
func landingPath(user *model.User) string {
	if session.CanManageContent(user) {
		return "/dashboard"
	}
	return "/projects"
}

// redirectIfUnauthorized はバックエンドが401を返した場合にログイン画面へ遷移させる。
// トークンはSignerが破棄済み。認証系ページではフォームにエラーを表示するため遷移しない。
func redirectIfUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, apiclient.ErrUnauthorized) || guard.IsPublicAuthPath(r.URL.Path) {
		return false
	}
	if middleware.WantsJSON(r) {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return true
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
	return true
}

// backendStatus はバックエンドエラーに対応する応答ステータスを返す。
// 4xxはそのまま返し、通信失敗や5xxは502とする。
func backendStatus(err error) int {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}
