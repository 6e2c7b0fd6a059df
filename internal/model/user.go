// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Role はユーザーの権限ロールを表す。
// 未知の値も保持するが、権限判定では昇格権限なしとして扱う。
type Role string

const (
	// RoleOwner はポートフォリオの所有者。ユーザー管理を含む全操作が可能。
	RoleOwner Role = "owner"
	// RoleAdmin はコンテンツ管理者。
	RoleAdmin Role = "admin"
	// RoleViewer は閲覧のみのユーザー。
	RoleViewer Role = "viewer"
)

// IsKnown はロールが定義済みの3値のいずれかかどうかを返す。
func (r Role) IsKnown() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleViewer:
		return true
	default:
		return false
	}
}

// User はバックエンドから返されるユーザーレコードを表す。
// 作成・更新日時は表示用で、権限判定には使用しない。
type User struct {
	ID        string     `json:"id" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Role      Role       `json:"role" validate:"required"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// UnmarshalJSON はバックエンドの `_id` フィールドを `id` の別名として受け付ける。
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}

// Clone はユーザーレコードのディープコピーを返す。nilの場合はnilを返す。
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.CreatedAt != nil {
		t := *u.CreatedAt
		c.CreatedAt = &t
	}
	if u.UpdatedAt != nil {
		t := *u.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

// AuthResponse は認証系エンドポイントの成功レスポンスを表す。
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
