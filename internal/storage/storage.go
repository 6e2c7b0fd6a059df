// Package storage はクライアントインスタンスごとの永続キーバリューストレージを提供する。
// ブラウザのlocalStorageに相当し、値は常に文字列として扱う。
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable はストレージが利用できない場合のエラー。
var ErrUnavailable = errors.New("storage unavailable")

// Storage は文字列値を保持する永続キーバリューストレージのインターフェース。
type Storage interface {
	// Get はキーに対応する値を返す。キーが存在しない場合はokがfalseになる。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set はキーに値を書き込む。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error
	// Remove はキーを削除する。キーが存在しない場合もエラーにはならない。
	Remove(ctx context.Context, key string) error
}
