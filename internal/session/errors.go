package session

import "errors"

var (
	// ErrInvalidToken はLoginに空のトークンが渡された場合のエラー。
	ErrInvalidToken = errors.New("session: token must not be empty")
	// ErrInvalidUser はユーザーレコードにid/email/roleが揃っていない場合のエラー。
	ErrInvalidUser = errors.New("session: invalid user record")
	// ErrNotPersisted はメモリ上の状態は更新されたが永続化に失敗した場合のエラー。
	// セッションは現在のプロセス内では有効だが、再起動後には復元されない。
	ErrNotPersisted = errors.New("session: state not persisted")
)
