package lending

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/jmoiron/sqlx"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/auth"
	"library-backend/internal/platform/db"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

func errOutOfStock() error { return apperr.ErrOutOfStock("在庫がありません") }

func errLendingNotFound() error { return apperr.ErrNotFound("貸出記録が見つかりません") }

type lockedBook struct {
	Title      string `db:"title"`
	StockCount int    `db:"stock_count"`
}

// lock book row
func lockBook(ctx context.Context, tx db.DBTX, bookID uint64) (lockedBook, error) {
	var b lockedBook
	const q = `SELECT title, stock_count FROM books WHERE id = ? FOR UPDATE`
	if err := tx.GetContext(ctx, &b, q, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, apperr.ErrNotFound("本が見つかりません")
		}
		return b, err
	}
	return b, nil
}

func updateStock(ctx context.Context, tx db.DBTX, bookID uint64, delta int) error {
	// 減算は在庫が残っている場合だけ通す
	q := `UPDATE books SET stock_count = stock_count + ? WHERE id = ?`
	if delta < 0 {
		q += ` AND stock_count >= ?`
	}
	args := []any{delta, bookID}
	if delta < 0 {
		args = append(args, -delta)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		if delta < 0 {
			return errOutOfStock()
		}
		return apperr.ErrInternal("failed to update books.stock_count")
	}
	return nil
}

// Lend は在庫確認・減算・貸出行の作成を1トランザクションで行う
func (s *Store) Lend(ctx context.Context, l *Lending) error {
	return db.RunInTx(ctx, s.db, db.ReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		// 1. Lock book row
		b, err := lockBook(ctx, tx, l.BookID)
		if err != nil {
			return err
		}

		// 2. Stock check
		if b.StockCount <= 0 {
			return errOutOfStock()
		}

		// 3. Decrement stock
		if err := updateStock(ctx, tx, l.BookID, -1); err != nil {
			return err
		}

		// 4. Insert lending
		const q = `
INSERT INTO lendings (lending_ulid, book_id, user_id, checked_out_at, due_date)
VALUES (?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q, l.ULID, l.BookID, l.UserID, l.CheckedOutAt, l.DueDate)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = uint64(id)
		l.BookTitle = b.Title
		return nil
	})
}

const selectLending = `
SELECT l.id, l.lending_ulid, l.book_id, b.title AS book_title, l.user_id,
       l.checked_out_at, l.due_date, l.returned_at
FROM lendings l JOIN books b ON b.id = l.book_id`

// Return は返却日時を記録し在庫を戻す。本人か管理者以外には存在しない扱いにする。
func (s *Store) Return(ctx context.Context, lendingULID string, actor auth.Identity, at time.Time) (*Lending, error) {
	var out *Lending
	err := db.RunInTx(ctx, s.db, db.ReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var bookID uint64
		if err := tx.GetContext(ctx, &bookID, `SELECT book_id FROM lendings WHERE lending_ulid = ?`, lendingULID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errLendingNotFound()
			}
			return err
		}

		// 貸出と同じく books → lendings の順にロックする
		if _, err := lockBook(ctx, tx, bookID); err != nil {
			return err
		}
		var l Lending
		if err := tx.GetContext(ctx, &l, selectLending+` WHERE l.lending_ulid = ? FOR UPDATE`, lendingULID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errLendingNotFound()
			}
			return err
		}
		if !actor.Admin && l.UserID != actor.UserID {
			return errLendingNotFound()
		}
		if !l.Outstanding() {
			return apperr.ErrAlreadyReturned("この本は既に返却されています")
		}

		if err := updateStock(ctx, tx, l.BookID, +1); err != nil {
			return err
		}
		const q = `UPDATE lendings SET returned_at = ? WHERE id = ? AND returned_at IS NULL`
		if _, err := tx.ExecContext(ctx, q, at, l.ID); err != nil {
			return err
		}
		l.ReturnedAt = sql.NullTime{Time: at, Valid: true}
		out = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Lending, int64, error) {
	ds := goqu.Dialect("mysql").
		From(goqu.T("lendings").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Prepared(true)
	if f.UserID != nil {
		ds = ds.Where(goqu.I("l.user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		ds = ds.Where(goqu.I("l.book_id").Eq(*f.BookID))
	}
	if f.Outstanding {
		ds = ds.Where(goqu.I("l.returned_at").IsNull())
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := ds.Select(
		goqu.I("l.id"), goqu.I("l.lending_ulid"), goqu.I("l.book_id"), goqu.I("b.title").As("book_title"),
		goqu.I("l.user_id"), goqu.I("l.checked_out_at"), goqu.I("l.due_date"), goqu.I("l.returned_at"),
	).
		Order(goqu.I("l.checked_out_at").Desc(), goqu.I("l.id").Desc()).
		Limit(uint(f.Limit)).
		Offset(uint(f.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}
	rows := []Lending{}
	if err := s.db.SelectContext(ctx, &rows, listSQL, listArgs...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
