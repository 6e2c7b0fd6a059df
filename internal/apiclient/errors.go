package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized はバックエンドが401を返したことを表す。
// Errorからerrors.Isで判定できる。
var ErrUnauthorized = errors.New("unauthorized")

// ErrResponseTooLarge は成功レスポンスの本文がmaxResponseSizeを超えたことを表す。
var ErrResponseTooLarge = errors.New("response too large")

// Error はバックエンドのエラーレスポンスを表す。
// Messageはバックエンドが返した人間向けメッセージで、UIにそのまま表示する。
type Error struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Is は401をErrUnauthorizedとして扱う。
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// MessageOf はエラーから表示用メッセージを取り出す。
// バックエンドのメッセージがなければfallbackを返す。
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
