package catalog

import (
	"database/sql"
	"time"

	"library-backend/internal/normalize"
	"library-backend/internal/platform/apperr"
)

type Book struct {
	ID            uint64         `db:"id"`
	Title         string         `db:"title"`
	ISBN          string         `db:"isbn"`
	Publisher     sql.NullString `db:"publisher"`
	PublishedDate sql.NullTime   `db:"published_date"`
	ImageURL      sql.NullString `db:"image_url"`
	StockCount    int            `db:"stock_count"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`

	// 保存時に名前で find-or-create される（ID=0 は未解決）
	Authors []Author `db:"-"`
	Tags    []Tag    `db:"-"`

	// 更新時、false なら stock_count は書き込まずロック中の値を読み直す
	stockSet bool
}

// SetStockCount は在庫数を明示的に書き込む対象にする
func (b *Book) SetStockCount(n int) {
	b.StockCount = n
	b.stockSet = true
}

type Author struct {
	ID   uint64 `db:"id"`
	Name string `db:"name"`
}

type Tag struct {
	ID   uint64 `db:"id"`
	Name string `db:"name"`
}

// AssignAuthors は著者集合を丸ごと置き換える。空になった場合は保存時の検証で落ちる。
func (b *Book) AssignAuthors(raw string) {
	names := normalize.NameList(raw)
	b.Authors = make([]Author, 0, len(names))
	for _, n := range names {
		b.Authors = append(b.Authors, Author{Name: n})
	}
}

// AssignTags はタグ集合を丸ごと置き換える。空入力は全解除。
func (b *Book) AssignTags(raw string) {
	names := normalize.NameList(raw)
	b.Tags = make([]Tag, 0, len(names))
	for _, n := range names {
		b.Tags = append(b.Tags, Tag{Name: n})
	}
}

func (b *Book) AuthorNames() []string {
	out := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		out = append(out, a.Name)
	}
	return out
}

func (b *Book) TagNames() []string {
	out := make([]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		out = append(out, t.Name)
	}
	return out
}

// Validate はストアに問い合わせずに判定できる項目だけを見る（ISBN 重複は別）
func (b *Book) Validate() apperr.FieldErrors {
	fe := apperr.FieldErrors{}
	if b.Title == "" {
		fe.Add("title", "can't be blank")
	}
	if b.ISBN == "" {
		fe.Add("isbn", "can't be blank")
	}
	if len(b.Authors) == 0 {
		fe.Add("author_names", "can't be blank")
	}
	if b.StockCount < 0 {
		fe.Add("stock_count", "must be greater than or equal to 0")
	}
	return fe
}

// 並び順
type Sort string

const (
	SortNewest        Sort = "newest"
	SortTitleAsc      Sort = "title_asc"
	SortPublishedDesc Sort = "published_desc"
)

// ParseSort は未知の値を newest に寄せる
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortTitleAsc, SortPublishedDesc:
		return Sort(s)
	}
	return SortNewest
}

type SearchQuery struct {
	Term    string
	Sort    Sort
	Page    int
	PerPage int
}
