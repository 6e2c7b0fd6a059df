// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeLoginInProgress = "LOGIN_IN_PROGRESS"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeInvalidRole     = "INVALID_ROLE"
	ErrCodeUnknownContent  = "UNKNOWN_CONTENT_KIND"
	ErrCodeBackendFailed   = "BACKEND_FAILED"
	ErrCodeSessionNotSaved = "SESSION_NOT_PERSISTED"
)

// NewUnauthenticatedError はログインが必要な場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足の場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "owner または admin 権限を持つアカウントでログインしてください。",
	}
}

// NewLoginInProgressError はログイン処理が既に進行中の場合のエラーを生成する。
func NewLoginInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginInProgress,
		Message:  "ログイン処理が進行中です。",
		Category: "auth",
		Action:   "処理の完了を待ってから再度お試しください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewInvalidRoleError は未定義のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "ロールには owner、admin、viewer のいずれかを指定してください。",
	}
}

// NewUnknownContentError は未知のコンテンツ種別が指定された場合のエラーを生成する。
func NewUnknownContentError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownContent,
		Message:  fmt.Sprintf("未知のコンテンツ種別です: %s", kind),
		Category: "validation",
		Action:   "projects、skills、experience、learning のいずれかを指定してください。",
	}
}

// NewBackendFailedError はバックエンドAPIの呼び出しに失敗した場合のエラーを生成する。
// messageにはバックエンドが返した人間可読なメッセージを渡す。
func NewBackendFailedError(message string) *APIError {
	if message == "" {
		message = "予期しないエラーが発生しました。"
	}
	return &APIError{
		Code:     ErrCodeBackendFailed,
		Message:  message,
		Category: "content",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionNotPersistedError はセッションの永続化に失敗した場合のエラーを生成する。
// 現在のプロセス内ではセッションは有効だが、再起動後は失われる。
func NewSessionNotPersistedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotSaved,
		Message:  "セッションを保存できませんでした。再起動するとログアウトされます。",
		Category: "system",
		Action:   "ストレージの状態を確認してください。",
	}
}
