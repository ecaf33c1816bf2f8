package lending

import (
	"database/sql"
	"time"
)

// Lending は1冊分の貸出。returned_at が NULL の間は貸出中。
type Lending struct {
	ID           uint64       `db:"id"`
	ULID         string       `db:"lending_ulid"`
	BookID       uint64       `db:"book_id"`
	BookTitle    string       `db:"book_title"`
	UserID       uint64       `db:"user_id"`
	CheckedOutAt time.Time    `db:"checked_out_at"`
	DueDate      time.Time    `db:"due_date"`
	ReturnedAt   sql.NullTime `db:"returned_at"`
}

func (l *Lending) Outstanding() bool { return !l.ReturnedAt.Valid }

// Overdue は未返却かつ返却期限を過ぎているか
func (l *Lending) Overdue(now time.Time) bool {
	return l.Outstanding() && l.DueDate.Before(now)
}

type Filter struct {
	UserID      *uint64
	BookID      *uint64
	Outstanding bool
	Limit       int
	Offset      int
}
