package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// dialect はSQL方言ごとのクエリ文字列を保持する。
type dialect struct {
	get    string
	upsert string
	remove string
}

var dialects = map[string]dialect{
	"postgres": {
		get: `SELECT value FROM client_storage WHERE namespace = $1 AND key = $2`,
		upsert: `INSERT INTO client_storage (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		remove: `DELETE FROM client_storage WHERE namespace = $1 AND key = $2`,
	},
	"sqlite": {
		get: `SELECT value FROM client_storage WHERE namespace = ? AND key = ?`,
		upsert: `INSERT INTO client_storage (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		remove: `DELETE FROM client_storage WHERE namespace = ? AND key = ?`,
	},
}

// SQLStorage はclient_storageテーブルを使用するStorage実装。
// namespaceごとに独立したキー空間を持つため、1つのデータベースを
// 複数のクライアントインスタンスで共有できる。
type SQLStorage struct {
	db        *sql.DB
	namespace string
	dialect   dialect
	now       func() time.Time
}

// NewSQLStorage はSQLStorageを生成する。driverは "postgres" または "sqlite"。
func NewSQLStorage(db *sql.DB, driver, namespace string) (*SQLStorage, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported storage dialect: %q", driver)
	}
	return &SQLStorage{
		db:        db,
		namespace: namespace,
		dialect:   d,
		now:       time.Now,
	}, nil
}

// Get はキーに対応する値を返す。
func (s *SQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.get, s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read %q: %w", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// Set はキーに値を書き込む。
func (s *SQLStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.upsert,
		s.namespace, key, value, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to write %q: %w", ErrUnavailable, key, err)
	}
	return nil
}

// Remove はキーを削除する。
func (s *SQLStorage) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.remove, s.namespace, key)
	if err != nil {
		return fmt.Errorf("%w: failed to remove %q: %w", ErrUnavailable, key, err)
	}
	return nil
}

// compile-time interface check
var _ Storage = (*SQLStorage)(nil)
