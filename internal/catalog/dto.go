package catalog

import (
	"time"
)

// 手入力の登録リクエスト
type CreateBookRequest struct {
	Title         string  `json:"title"`
	ISBN          string  `json:"isbn"`
	Publisher     *string `json:"publisher,omitempty"`
	PublishedDate *string `json:"published_date,omitempty"` // "2006-01-02" / "2006-01" / "2006"
	StockCount    any     `json:"stock_count,omitempty"` // 数値または文字列。空なら0
	AuthorNames   string  `json:"author_names"`          // カンマ区切り
	TagNames      string  `json:"tag_names"`
}

// 更新リクエスト。nil の項目は変更しない。
type UpdateBookRequest struct {
	Title         *string `json:"title,omitempty"`
	ISBN          *string `json:"isbn,omitempty"`
	Publisher     *string `json:"publisher,omitempty"`
	PublishedDate *string `json:"published_date,omitempty"`
	StockCount    any     `json:"stock_count,omitempty"`
	AuthorNames   *string `json:"author_names,omitempty"`
	TagNames      *string `json:"tag_names,omitempty"`
}

// ISBN からの登録。stock_count は数値でも文字列でもよい（空なら1）。
type RegisterFromISBNRequest struct {
	ISBN       string `json:"isbn"`
	StockCount any    `json:"stock_count,omitempty"`
}

type BookResponse struct {
	ID            uint64    `json:"id"`
	Title         string    `json:"title"`
	ISBN          string    `json:"isbn"`
	Publisher     *string   `json:"publisher,omitempty"`
	PublishedDate *string   `json:"published_date,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
	StockCount    int       `json:"stock_count"`
	Authors       []string  `json:"authors"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SearchResult struct {
	Items   []BookResponse `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Sort    Sort           `json:"sort"`
}

const dateLayout = "2006-01-02"

func toResponse(b *Book) BookResponse {
	res := BookResponse{
		ID:         b.ID,
		Title:      b.Title,
		ISBN:       b.ISBN,
		StockCount: b.StockCount,
		Authors:    b.AuthorNames(),
		Tags:       b.TagNames(),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
	if b.Publisher.Valid {
		res.Publisher = &b.Publisher.String
	}
	if b.PublishedDate.Valid {
		d := b.PublishedDate.Time.Format(dateLayout)
		res.PublishedDate = &d
	}
	if b.ImageURL.Valid {
		res.ImageURL = &b.ImageURL.String
	}
	return res
}
