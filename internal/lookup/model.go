package lookup

import "time"

// BookInfo は外部カタログから得た正規化済みの書誌情報
type BookInfo struct {
	ISBN          string     `json:"isbn"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	Publisher     *string    `json:"publisher,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	ImageURL      *string    `json:"image_url,omitempty"`
}

// Google Books API のレスポンス（使う項目だけ）
type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	VolumeInfo *volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title         string            `json:"title"`
	Authors       []string          `json:"authors"`
	Publisher     string            `json:"publisher"`
	PublishedDate string            `json:"publishedDate"`
	ImageLinks    map[string]string `json:"imageLinks"`
}

// 画像サイズの優先順
var imagePreference = []string{"large", "medium", "thumbnail", "smallThumbnail"}
