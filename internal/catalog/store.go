package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/db"
)

type Store struct {
	db        *sqlx.DB
	collation string
}

func NewStore(conn *sqlx.DB, titleCollation string) *Store {
	return &Store{db: conn, collation: titleCollation}
}

func errBookNotFound() error { return apperr.ErrNotFound("本が見つかりません") }

func errISBNTaken() error {
	fe := apperr.FieldErrors{}
	fe.Add("isbn", "has already been taken")
	return fe.Err()
}

// Get は著者・タグ付きで1冊取得する
func (s *Store) Get(ctx context.Context, id uint64) (*Book, error) {
	var b Book
	const q = `
SELECT id, title, isbn, publisher, published_date, image_url, stock_count, created_at, updated_at
FROM books WHERE id = ?`
	if err := s.db.GetContext(ctx, &b, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errBookNotFound()
		}
		return nil, err
	}
	books := []Book{b}
	if err := loadAssociations(ctx, s.db, books); err != nil {
		return nil, err
	}
	return &books[0], nil
}

// ExistsISBN は正規化済み ISBN が他の本で使われているか
func (s *Store) ExistsISBN(ctx context.Context, isbn string, exceptID uint64) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS(SELECT 1 FROM books WHERE isbn = ? AND id <> ?)`
	if err := s.db.GetContext(ctx, &exists, q, isbn, exceptID); err != nil {
		return false, err
	}
	return exists, nil
}

// Save は本体と関連行を1トランザクションで保存する（新規は ID=0）。
// 関連は毎回置き換える。
func (s *Store) Save(ctx context.Context, b *Book) error {
	// find-or-create の読み直しで他Txのコミットを見るため READ COMMITTED
	return db.RunInTx(ctx, s.db, db.ReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := upsertBook(ctx, tx, b); err != nil {
			if db.IsDuplicateKey(err) {
				return errISBNTaken()
			}
			return err
		}

		for i := range b.Authors {
			id, err := FindOrCreateAuthor(ctx, tx, b.Authors[i].Name)
			if err != nil {
				return err
			}
			b.Authors[i].ID = id
		}
		for i := range b.Tags {
			id, err := FindOrCreateTag(ctx, tx, b.Tags[i].Name)
			if err != nil {
				return err
			}
			b.Tags[i].ID = id
		}

		if err := replaceJoins(ctx, tx, "book_authors", "author_id", b.ID, authorIDs(b.Authors)); err != nil {
			return err
		}
		return replaceJoins(ctx, tx, "taggings", "tag_id", b.ID, tagIDs(b.Tags))
	})
}

func upsertBook(ctx context.Context, tx db.DBTX, b *Book) error {
	if b.ID == 0 {
		const q = `
INSERT INTO books (title, isbn, publisher, published_date, image_url, stock_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q, b.Title, b.ISBN, b.Publisher, b.PublishedDate, b.ImageURL, b.StockCount, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		b.ID = uint64(id)
		return nil
	}

	// 貸出と同じく行ロックを取り、在庫はロック後の値を基準にする
	var current int
	err := tx.GetContext(ctx, &current, `SELECT stock_count FROM books WHERE id = ? FOR UPDATE`, b.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return errBookNotFound()
	}
	if err != nil {
		return err
	}
	if !b.stockSet {
		b.StockCount = current
	}

	const q = `
UPDATE books
SET title = ?, isbn = ?, publisher = ?, published_date = ?, image_url = ?, stock_count = ?, updated_at = ?
WHERE id = ?`
	_, err = tx.ExecContext(ctx, q, b.Title, b.ISBN, b.Publisher, b.PublishedDate, b.ImageURL, b.StockCount, b.UpdatedAt, b.ID)
	return err
}

func replaceJoins(ctx context.Context, tx db.DBTX, table, col string, bookID uint64, ids []uint64) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE book_id = ?`, table), bookID); err != nil {
		return err
	}
	ins := fmt.Sprintf(`INSERT INTO %s (book_id, %s) VALUES (?, ?)`, table, col)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, ins, bookID, id); err != nil {
			return err
		}
	}
	return nil
}

func FindOrCreateAuthor(ctx context.Context, q db.DBTX, name string) (uint64, error) {
	return findOrCreate(ctx, q, "authors", name)
}

func FindOrCreateTag(ctx context.Context, q db.DBTX, name string) (uint64, error) {
	return findOrCreate(ctx, q, "tags", name)
}

// findOrCreate は名前の完全一致で探し、なければ作る。
// 同時作成で UNIQUE 違反になったら作られた行を読み直す。
func findOrCreate(ctx context.Context, q db.DBTX, table, name string) (uint64, error) {
	sel := fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table)
	var id uint64
	err := q.GetContext(ctx, &id, sel, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := q.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (name) VALUES (?)`, table), name)
	if err != nil {
		if !db.IsDuplicateKey(err) {
			return 0, err
		}
		if err := q.GetContext(ctx, &id, sel, name); err != nil {
			return 0, fmt.Errorf("%s %q: re-read after duplicate: %w", table, name, err)
		}
		return id, nil
	}
	n, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Delete は未返却の貸出があれば削除しない。関連行は FK の CASCADE で消える。
func (s *Store) Delete(ctx context.Context, id uint64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		// 貸出処理と同じ行ロックで直列化
		var locked uint64
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM books WHERE id = ? FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errBookNotFound()
			}
			return err
		}

		var onLoan bool
		const q = `SELECT EXISTS(SELECT 1 FROM lendings WHERE book_id = ? AND returned_at IS NULL)`
		if err := tx.GetContext(ctx, &onLoan, q, id); err != nil {
			return err
		}
		if onLoan {
			return apperr.ErrBookOnLoan("貸出中の本は削除できません")
		}

		_, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		return err
	})
}

// Search は一覧（著者・タグ付き）と総件数を返す
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]Book, int, error) {
	listSQL, listArgs, countSQL, countArgs, err := buildSearch(q, s.collation)
	if err != nil {
		return nil, 0, err
	}

	var (
		total int
		books = []Book{}
	)
	// 件数と一覧を同じスナップショットで読む
	err = db.ReadOnly(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &books, listSQL, listArgs...); err != nil {
			return err
		}
		return loadAssociations(ctx, tx, books)
	})
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

type joinedName struct {
	BookID uint64 `db:"book_id"`
	ID     uint64 `db:"id"`
	Name   string `db:"name"`
}

// loadAssociations は著者・タグをまとめて読み込む（N+1 回避）
func loadAssociations(ctx context.Context, q db.DBTX, books []Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]uint64, len(books))
	pos := make(map[uint64]int, len(books))
	for i := range books {
		ids[i] = books[i].ID
		pos[books[i].ID] = i
		books[i].Authors = []Author{}
		books[i].Tags = []Tag{}
	}

	authors, err := selectJoined(ctx, q, `
SELECT ba.book_id, a.id, a.name
FROM book_authors ba JOIN authors a ON a.id = ba.author_id
WHERE ba.book_id IN (?) ORDER BY ba.id`, ids)
	if err != nil {
		return err
	}
	for _, r := range authors {
		i := pos[r.BookID]
		books[i].Authors = append(books[i].Authors, Author{ID: r.ID, Name: r.Name})
	}

	tags, err := selectJoined(ctx, q, `
SELECT tg.book_id, t.id, t.name
FROM taggings tg JOIN tags t ON t.id = tg.tag_id
WHERE tg.book_id IN (?) ORDER BY tg.id`, ids)
	if err != nil {
		return err
	}
	for _, r := range tags {
		i := pos[r.BookID]
		books[i].Tags = append(books[i].Tags, Tag{ID: r.ID, Name: r.Name})
	}
	return nil
}

func selectJoined(ctx context.Context, q db.DBTX, query string, ids []uint64) ([]joinedName, error) {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return nil, err
	}
	var rows []joinedName
	if err := q.SelectContext(ctx, &rows, sqlx.Rebind(sqlx.QUESTION, query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func authorIDs(as []Author) []uint64 {
	out := make([]uint64, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

func tagIDs(ts []Tag) []uint64 {
	out := make([]uint64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
