// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/folio/internal/session"
)

// SnapshotProvider は現在のセッション状態を提供するインターフェース。
// session.Storeの部分集合として定義する。
type SnapshotProvider interface {
	Snapshot() session.Snapshot
}

// NewSessionMiddleware はリクエスト開始時点のセッションSnapshotを
// リクエストコンテキストに注入するミドルウェアを返す。
// 後続のガードやハンドラーはストアを再読込せずにこのSnapshotを参照する。
// 未認証でもリクエストは拒否しない（拒否はルートガードの責務）。
func NewSessionMiddleware(provider SnapshotProvider) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := session.NewContext(r.Context(), provider.Snapshot())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストのSnapshotからユーザーIDを取得する。
// 未認証の場合は空文字列を返す。
func UserIDFromContext(ctx context.Context) string {
	return session.FromContext(ctx).UserID()
}
