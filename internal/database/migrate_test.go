package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// testPostgresURL はテスト用のPostgreSQL URLを返す。
// 環境変数 TEST_DATABASE_URL が未設定の場合はテストをスキップする。
func testPostgresURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}
	return url
}

// setupPostgresDB はテスト用PostgreSQLを準備する。
// テスト実行前にテーブルとマイグレーション履歴をドロップしてクリーンな状態にする。
func setupPostgresDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dbURL := testPostgresURL(t)

	db, err := Open(DriverPostgres, dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	cleanupSQL := `
		DROP TABLE IF EXISTS client_storage CASCADE;
		DROP TABLE IF EXISTS schema_migrations CASCADE;
	`
	if _, err := db.Exec(cleanupSQL); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	return db, dbURL
}

func TestRunMigrations_SQLite_CreatesClientStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.db")

	if err := RunMigrations(DriverSQLite, path); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var name string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'client_storage'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("client_storage テーブルが存在しません: %v", err)
	}
}

func TestRunMigrations_SQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.db")

	if err := RunMigrations(DriverSQLite, path); err != nil {
		t.Fatalf("1回目のマイグレーション実行に失敗: %v", err)
	}
	if err := RunMigrations(DriverSQLite, path); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗（冪等性の問題）: %v", err)
	}
}

func TestMigrations_SQLite_UpAndDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.db")

	m, err := NewMigrator(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Migrator生成に失敗: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		t.Fatalf("Up マイグレーション実行に失敗: %v", err)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("Down マイグレーション実行に失敗: %v", err)
	}

	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'client_storage'",
	).Scan(&count); err != nil {
		t.Fatalf("テーブルカウント取得に失敗: %v", err)
	}
	if count != 0 {
		t.Errorf("Down後もclient_storageが残っています: got %d", count)
	}
}

func TestRunMigrations_Postgres_Up(t *testing.T) {
	db, dbURL := setupPostgresDB(t)
	defer db.Close()

	if err := RunMigrations(DriverPostgres, dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	var exists bool
	err := db.QueryRow(
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		"client_storage",
	).Scan(&exists)
	if err != nil {
		t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
	}
	if !exists {
		t.Error("テーブル client_storage が存在しません")
	}
}

func TestRunMigrations_Postgres_Idempotent(t *testing.T) {
	db, dbURL := setupPostgresDB(t)
	defer db.Close()

	if err := RunMigrations(DriverPostgres, dbURL); err != nil {
		t.Fatalf("1回目のマイグレーション実行に失敗: %v", err)
	}
	if err := RunMigrations(DriverPostgres, dbURL); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗（冪等性の問題）: %v", err)
	}
}
