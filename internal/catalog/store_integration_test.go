//go:build integration

package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/db/dbtest"
)

var conn *sqlx.DB

func TestMain(m *testing.M) {
	c, cleanup, err := dbtest.Start(context.Background())
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	conn = c
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func realService() *Service {
	return newService(NewStore(conn, "utf8mb4_ja_0900_as_cs"), &stubLookup{}, 6)
}

func TestStoreSaveAndSearch(t *testing.T) {
	dbtest.Reset(t, conn)
	svc := realService()
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, CreateBookRequest{Title: "Go言語入門", ISBN: "111", AuthorNames: "山田太郎, 佐藤花子", TagNames: "Go"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, CreateBookRequest{Title: "Ruby on Rails", ISBN: "222", AuthorNames: "佐藤花子", PublishedDate: strp("2020")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, CreateBookRequest{Title: "あいうえお", ISBN: "333", AuthorNames: "Someone", TagNames: "golang"})
	require.NoError(t, err)

	res, err := svc.Search(ctx, "", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	res, err = svc.Search(ctx, "Nonexistent Title XYZ", "", 1)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	// 著者名の部分一致。同じ本は1回だけ。
	res, err = svc.Search(ctx, "花子", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Ruby on Rails", res.Items[0].Title)

	// タグ名は大文字小文字を区別しない
	res, err = svc.Search(ctx, "GO", "published_desc", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = svc.Search(ctx, "", "published_desc", 1)
	require.NoError(t, err)
	assert.Equal(t, "Ruby on Rails", res.Items[0].Title)

	// 著者は共有される
	assert.Equal(t, 3, dbtest.Count(t, conn, `SELECT COUNT(*) FROM authors`))
}

func TestStoreSaveDuplicateISBN(t *testing.T) {
	dbtest.Reset(t, conn)
	repo := NewStore(conn, "")
	ctx := context.Background()
	now := time.Now().UTC()

	b1 := &Book{Title: "a", ISBN: "999", Authors: []Author{{Name: "x"}}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Save(ctx, b1))

	// サービスの事前チェックをすり抜けても UNIQUE 制約で検証エラーになる
	b2 := &Book{Title: "b", ISBN: "999", Authors: []Author{{Name: "y"}}, CreatedAt: now, UpdatedAt: now}
	err := repo.Save(ctx, b2)
	api, ok := apperr.As(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, apperr.CodeValidation, api.Code)
	// ロールバックされて著者 y は作られていない
	assert.Equal(t, 0, dbtest.Count(t, conn, `SELECT COUNT(*) FROM authors WHERE name = 'y'`))
}

func TestStoreFindOrCreateRace(t *testing.T) {
	dbtest.Reset(t, conn)
	ctx := context.Background()

	const workers = 10
	ids := make([]uint64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = FindOrCreateAuthor(ctx, conn, "同名著者")
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, dbtest.Count(t, conn, `SELECT COUNT(*) FROM authors`))

	// 大文字小文字は別名として扱う
	a, err := FindOrCreateTag(ctx, conn, "Go")
	require.NoError(t, err)
	b, err := FindOrCreateTag(ctx, conn, "go")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStoreDestroy(t *testing.T) {
	dbtest.Reset(t, conn)
	svc := realService()
	ctx := context.Background()

	b, err := svc.Create(ctx, admin, CreateBookRequest{Title: "a", ISBN: "111", AuthorNames: "x, y", TagNames: "t"})
	require.NoError(t, err)
	uid := dbtest.InsertUser(t, conn, "reader@example.com", false)
	_, err = conn.Exec(`INSERT INTO lendings (lending_ulid, book_id, user_id, checked_out_at, due_date) VALUES (?, ?, ?, NOW(6), NOW(6))`,
		"01HZZZZZZZZZZZZZZZZZZZZ001", b.ID, uid)
	require.NoError(t, err)

	err = svc.Destroy(ctx, admin, b.ID)
	assert.True(t, apperr.Is(err, apperr.CodeBookOnLoan), "%v", err)
	assert.Equal(t, 1, dbtest.Count(t, conn, `SELECT COUNT(*) FROM books`))

	_, err = conn.Exec(`UPDATE lendings SET returned_at = NOW(6)`)
	require.NoError(t, err)
	require.NoError(t, svc.Destroy(ctx, admin, b.ID))

	for table, want := range map[string]int{"books": 0, "book_authors": 0, "taggings": 0, "authors": 2, "tags": 1} {
		assert.Equal(t, want, dbtest.Count(t, conn, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)), table)
	}

	err = svc.Destroy(ctx, admin, b.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

// lendDuringEdit は Get の直後に貸出1件をコミットする
type lendDuringEdit struct {
	*Store
	userID uint64
}

func (r lendDuringEdit) Get(ctx context.Context, id uint64) (*Book, error) {
	b, err := r.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tx := r.db.MustBeginTx(ctx, nil)
	tx.MustExecContext(ctx, `UPDATE books SET stock_count = stock_count - 1 WHERE id = ?`, id)
	tx.MustExecContext(ctx, `INSERT INTO lendings (lending_ulid, book_id, user_id, checked_out_at, due_date) VALUES (?, ?, ?, NOW(6), NOW(6))`,
		"01HZZZZZZZZZZZZZZZZZZZZ002", id, r.userID)
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

func TestStoreUpdateKeepsConcurrentLend(t *testing.T) {
	dbtest.Reset(t, conn)
	ctx := context.Background()
	created, err := realService().Create(ctx, admin, CreateBookRequest{Title: "a", ISBN: "111", AuthorNames: "x", StockCount: 2})
	require.NoError(t, err)
	uid := dbtest.InsertUser(t, conn, "reader@example.com", false)

	svc := newService(lendDuringEdit{Store: NewStore(conn, ""), userID: uid}, &stubLookup{}, 6)
	res, err := svc.Update(ctx, admin, created.ID, UpdateBookRequest{Title: strp("b")})
	require.NoError(t, err)

	outstanding := dbtest.Count(t, conn, `SELECT COUNT(*) FROM lendings WHERE book_id = ? AND returned_at IS NULL`, created.ID)
	require.Equal(t, 1, outstanding)
	assert.Equal(t, 2-outstanding, dbtest.Count(t, conn, `SELECT stock_count FROM books WHERE id = ?`, created.ID))
	assert.Equal(t, 2-outstanding, res.StockCount)
	assert.Equal(t, "b", res.Title)
}

func TestStoreSearchSortOrder(t *testing.T) {
	dbtest.Reset(t, conn)
	svc := realService()
	ctx := context.Background()

	for _, in := range []CreateBookRequest{
		{Title: "さしすせそ", ISBN: "111", AuthorNames: "x", PublishedDate: strp("2020-05-01")},
		{Title: "あいうえお", ISBN: "222", AuthorNames: "x", PublishedDate: strp("2021")},
		{Title: "かきくけこ", ISBN: "333", AuthorNames: "x"},
	} {
		_, err := svc.Create(ctx, admin, in)
		require.NoError(t, err)
	}

	titles := func(res SearchResult) []string {
		out := make([]string, 0, len(res.Items))
		for _, it := range res.Items {
			out = append(out, it.Title)
		}
		return out
	}

	res, err := svc.Search(ctx, "", "title_asc", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"あいうえお", "かきくけこ", "さしすせそ"}, titles(res))

	// 出版日なしは一番新しく登録されていても末尾
	res, err = svc.Search(ctx, "", "published_desc", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"あいうえお", "さしすせそ", "かきくけこ"}, titles(res))

	res, err = svc.Search(ctx, "", "newest", 1)
	require.NoError(t, err)
	assert.Equal(t, "かきくけこ", res.Items[0].Title)
}
