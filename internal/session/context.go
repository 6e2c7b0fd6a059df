package session

import "context"

type contextKey struct{}

// NewContext はSnapshotを格納したコンテキストを返す。
func NewContext(ctx context.Context, snap Snapshot) context.Context {
	return context.WithValue(ctx, contextKey{}, snap)
}

// FromContext はコンテキストからSnapshotを取得する。
// 格納されていない場合は未認証のSnapshotを返す。
func FromContext(ctx context.Context) Snapshot {
	snap, _ := ctx.Value(contextKey{}).(Snapshot)
	return snap
}
