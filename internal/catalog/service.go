package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"library-backend/internal/lookup"
	"library-backend/internal/normalize"
	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/auth"
	"library-backend/internal/platform/config"
)

type Repository interface {
	Get(ctx context.Context, id uint64) (*Book, error)
	ExistsISBN(ctx context.Context, isbn string, exceptID uint64) (bool, error)
	Save(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id uint64) error
	Search(ctx context.Context, q SearchQuery) ([]Book, int, error)
}

type MetadataLookup interface {
	Lookup(ctx context.Context, isbn string) (lookup.BookInfo, error)
}

type Service struct {
	repo    Repository
	lookup  MetadataLookup
	perPage int
	now     func() time.Time
}

func NewService(conn *sqlx.DB, lk MetadataLookup, cfg config.CatalogConfig) *Service {
	return newService(NewStore(conn, cfg.TitleCollation), lk, cfg.PerPage)
}

func newService(repo Repository, lk MetadataLookup, perPage int) *Service {
	return &Service{
		repo:    repo,
		lookup:  lk,
		perPage: perPage,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(id auth.Identity) error {
	if !id.Admin {
		return apperr.ErrNotPermitted("アクセス権限がありません")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uint64) (BookResponse, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return BookResponse{}, err
	}
	return toResponse(b), nil
}

// maxPage を超えるページは OFFSET の桁あふれを避けるため丸める
const maxPage = 100000

func (s *Service) Search(ctx context.Context, term, sort string, page int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	q := SearchQuery{Term: strings.TrimSpace(term), Sort: ParseSort(sort), Page: page, PerPage: s.perPage}
	books, total, err := s.repo.Search(ctx, q)
	if err != nil {
		return SearchResult{}, err
	}
	items := make([]BookResponse, 0, len(books))
	for i := range books {
		items = append(items, toResponse(&books[i]))
	}
	return SearchResult{Items: items, Total: total, Page: page, PerPage: s.perPage, Sort: q.Sort}, nil
}

func (s *Service) Create(ctx context.Context, id auth.Identity, in CreateBookRequest) (BookResponse, error) {
	if err := requireAdmin(id); err != nil {
		return BookResponse{}, err
	}

	fe := apperr.FieldErrors{}
	b := &Book{
		Title: strings.TrimSpace(in.Title),
		ISBN:  normalize.ISBN(in.ISBN),
	}
	b.Publisher = optString(in.Publisher)
	b.PublishedDate = parseDateField(in.PublishedDate, fe)
	b.SetStockCount(stockCountField(in.StockCount, fe))
	b.AssignAuthors(in.AuthorNames)
	b.AssignTags(in.TagNames)

	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	if err := s.save(ctx, b, fe); err != nil {
		return BookResponse{}, err
	}
	log.Printf("[INFO] book created: id=%d isbn=%s", b.ID, b.ISBN)
	return toResponse(b), nil
}

func (s *Service) Update(ctx context.Context, id auth.Identity, bookID uint64, in UpdateBookRequest) (BookResponse, error) {
	if err := requireAdmin(id); err != nil {
		return BookResponse{}, err
	}
	b, err := s.repo.Get(ctx, bookID)
	if err != nil {
		return BookResponse{}, err
	}

	fe := apperr.FieldErrors{}
	if in.Title != nil {
		b.Title = strings.TrimSpace(*in.Title)
	}
	if in.ISBN != nil {
		b.ISBN = normalize.ISBN(*in.ISBN)
	}
	if in.Publisher != nil {
		b.Publisher = optString(in.Publisher)
	}
	if in.PublishedDate != nil {
		b.PublishedDate = parseDateField(in.PublishedDate, fe)
	}
	// 未指定なら書き込まない（貸出による減算を古い値で上書きしない）
	if in.StockCount != nil {
		b.SetStockCount(stockCountField(in.StockCount, fe))
	}
	// 指定があったときだけ付け替える
	if in.AuthorNames != nil {
		b.AssignAuthors(*in.AuthorNames)
	}
	if in.TagNames != nil {
		b.AssignTags(*in.TagNames)
	}

	b.UpdatedAt = s.now()
	if err := s.save(ctx, b, fe); err != nil {
		return BookResponse{}, err
	}
	log.Printf("[INFO] book updated: id=%d", b.ID)
	return toResponse(b), nil
}

// save は検証してから保存する。途中までの書き込みは残らない。
func (s *Service) save(ctx context.Context, b *Book, fe apperr.FieldErrors) error {
	for k, msgs := range b.Validate() {
		for _, m := range msgs {
			fe.Add(k, m)
		}
	}
	if b.ISBN != "" {
		taken, err := s.repo.ExistsISBN(ctx, b.ISBN, b.ID)
		if err != nil {
			return err
		}
		if taken {
			fe.Add("isbn", "has already been taken")
		}
	}
	if err := fe.Err(); err != nil {
		return err
	}
	return s.repo.Save(ctx, b)
}

func (s *Service) Destroy(ctx context.Context, id auth.Identity, bookID uint64) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, bookID); err != nil {
		return err
	}
	log.Printf("[INFO] book deleted: id=%d", bookID)
	return nil
}

// LookupByISBN は登録前の確認用。保存はしない。
func (s *Service) LookupByISBN(ctx context.Context, id auth.Identity, isbn string) (lookup.BookInfo, error) {
	if err := requireAdmin(id); err != nil {
		return lookup.BookInfo{}, err
	}
	if strings.TrimSpace(isbn) == "" {
		return lookup.BookInfo{}, apperr.ErrValidation("ISBNを入力してください。")
	}
	return s.lookup.Lookup(ctx, isbn)
}

func (s *Service) RegisterFromISBN(ctx context.Context, id auth.Identity, in RegisterFromISBNRequest) (BookResponse, error) {
	if err := requireAdmin(id); err != nil {
		return BookResponse{}, err
	}
	raw := strings.TrimSpace(in.ISBN)
	if raw == "" {
		return BookResponse{}, apperr.ErrValidation("ISBNを入力してください。")
	}
	stock, ok := stockCountFrom(in.StockCount, 1, 1)
	if !ok {
		return BookResponse{}, apperr.ErrValidation("在庫数は1以上の整数で入力してください。")
	}

	// 外部APIを呼ぶ前に重複を弾く
	taken, err := s.repo.ExistsISBN(ctx, normalize.ISBN(raw), 0)
	if err != nil {
		return BookResponse{}, err
	}
	if taken {
		return BookResponse{}, apperr.ErrValidation("このISBNの書籍は既に登録されています。")
	}

	info, err := s.lookup.Lookup(ctx, raw)
	if err != nil {
		return BookResponse{}, err
	}

	now := s.now()
	b := &Book{
		Title:     info.Title,
		ISBN:      info.ISBN,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.SetStockCount(stock)
	b.Publisher = optString(info.Publisher)
	b.ImageURL = optString(info.ImageURL)
	if info.PublishedDate != nil {
		b.PublishedDate = sql.NullTime{Time: *info.PublishedDate, Valid: true}
	}
	// 手入力と同じ経路で著者を解釈する
	b.AssignAuthors(strings.Join(info.Authors, ", "))

	if err := s.save(ctx, b, apperr.FieldErrors{}); err != nil {
		return BookResponse{}, err
	}
	log.Printf("[INFO] book registered from isbn: id=%d isbn=%s", b.ID, b.ISBN)
	return toResponse(b), nil
}

// stockCountFrom は JSON の数値・文字列・未指定を受け付ける
func stockCountFrom(v any, def, min int) (int, bool) {
	switch x := v.(type) {
	case nil:
		return normalize.StockCount("", def, min)
	case string:
		return normalize.StockCount(x, def, min)
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > math.MaxInt32 {
			return 0, false
		}
		return normalize.StockCount(strconv.Itoa(int(x)), def, min)
	case int:
		return normalize.StockCount(strconv.Itoa(x), def, min)
	case bool:
		return 0, false
	default:
		return normalize.StockCount(fmt.Sprint(x), def, min)
	}
}

// stockCountField は手入力の在庫数（0以上の整数）を解釈する。不正ならフィールドエラー。
func stockCountField(v any, fe apperr.FieldErrors) int {
	n, ok := stockCountFrom(v, 0, 0)
	if !ok {
		fe.Add("stock_count", "must be an integer greater than or equal to 0")
		return 0
	}
	return n
}

func optString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	v := strings.TrimSpace(*p)
	return sql.NullString{String: v, Valid: v != ""}
}

func parseDateField(p *string, fe apperr.FieldErrors) sql.NullTime {
	if p == nil || strings.TrimSpace(*p) == "" {
		return sql.NullTime{}
	}
	t := lookup.ParseDate(*p)
	if t == nil {
		fe.Add("published_date", "is invalid")
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
