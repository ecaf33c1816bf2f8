//go:build integration

// Package dbtest は MySQL コンテナを使う結合テストの共通処理
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"library-backend/internal/platform/db"
)

const image = "mysql:8.4"

// Start はコンテナを起動してスキーマを適用する。戻り値の関数で後始末。
func Start(ctx context.Context) (*sqlx.DB, func(), error) {
	c, err := mysql.Run(ctx, image,
		mysql.WithDatabase("library_test"),
		mysql.WithUsername("library"),
		mysql.WithPassword("library"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start mysql container: %w", err)
	}
	terminate := func() { _ = testcontainers.TerminateContainer(c) }

	dsn, err := c.ConnectionString(ctx, "parseTime=true", "loc=UTC", "charset=utf8mb4")
	if err != nil {
		terminate()
		return nil, nil, err
	}

	var conn *sqlx.DB
	// 起動直後は接続を拒否されることがある
	for i := 0; i < 30; i++ {
		if conn, err = db.Open(dsn); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		terminate()
		return nil, nil, err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		terminate()
		return nil, nil, err
	}
	return conn, func() { conn.Close(); terminate() }, nil
}

// Reset は全テーブルを空にする（外部キー順）
func Reset(t *testing.T, conn *sqlx.DB) {
	t.Helper()
	for _, table := range []string{"lendings", "taggings", "book_authors", "tags", "authors", "books", "users"} {
		if _, err := conn.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
}

func InsertUser(t *testing.T, conn *sqlx.DB, email string, admin bool) uint64 {
	t.Helper()
	res, err := conn.Exec(`INSERT INTO users (name, email_address, password_digest, admin, created_at) VALUES (?, ?, 'x', ?, ?)`,
		email, email, admin, time.Now().UTC())
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	id, _ := res.LastInsertId()
	return uint64(id)
}

func InsertBook(t *testing.T, conn *sqlx.DB, title, isbn string, stock int) uint64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := conn.Exec(`INSERT INTO books (title, isbn, stock_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		title, isbn, stock, now, now)
	if err != nil {
		t.Fatalf("insert book: %v", err)
	}
	id, _ := res.LastInsertId()
	return uint64(id)
}

func Count(t *testing.T, conn *sqlx.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := conn.Get(&n, query, args...); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
