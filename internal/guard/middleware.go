package guard

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/folio/internal/metrics"
	"github.com/hitoshi/folio/internal/middleware"
	"github.com/hitoshi/folio/internal/model"
	"github.com/hitoshi/folio/internal/session"
)

// DecisionRecorder はガード判定のメトリクス記録インターフェース。
type DecisionRecorder interface {
	RecordGuardDecision(decision string)
}

// Config はガードミドルウェアの設定。
type Config struct {
	// LoginPath は未認証時のリダイレクト先。空の場合は"/login"。
	LoginPath string
	// Forbidden はHTMLクライアントへのDenied応答。nilの場合はJSONエラーを返す。
	Forbidden http.Handler
	Metrics   DecisionRecorder
	Logger    *slog.Logger
}

// Require は要件を満たさないリクエストを保護対象ハンドラーの実行前に遮断するミドルウェアを返す。
// セッションミドルウェアが注入したSnapshotで評価する。
// Redirectedの場合はログイン画面へ302（JSONクライアントには401）、
// Deniedの場合は403を返す。
func Require(req Requirement, cfg Config) func(next http.Handler) http.Handler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := session.FromContext(r.Context())
			nav := NewNavigation(r.URL.Path, req)
			decision := nav.Resolve(snap)
			cfg.Metrics.RecordGuardDecision(decision.String())

			switch decision {
			case Allowed:
				next.ServeHTTP(w, r)
			case Redirected:
				if middleware.WantsJSON(r) {
					middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
					return
				}
				http.Redirect(w, r, cfg.LoginPath, http.StatusFound)
			default:
				cfg.Logger.Warn("権限のないページへのアクセスを拒否しました",
					slog.String("path", r.URL.Path),
					slog.String("requirement", req.String()),
					slog.String("user_id", snap.UserID()),
					slog.String("role", string(snap.Role())),
				)
				if cfg.Forbidden != nil && !middleware.WantsJSON(r) {
					cfg.Forbidden.ServeHTTP(w, r)
					return
				}
				middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			}
		})
	}
}
