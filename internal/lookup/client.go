package lookup

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"library-backend/internal/normalize"
	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// レスポンス本文の上限
const maxBodyBytes = 2 << 20

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient は接続・読み取りそれぞれにタイムアウトを持つクライアントを作る
func NewClient(cfg config.LookupConfig) *Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.ReadTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		http: &http.Client{
			Transport: tr,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
	}
}

// Lookup は ISBN で1件だけ問い合わせる。リトライはしない。
func (c *Client) Lookup(ctx context.Context, rawISBN string) (BookInfo, error) {
	isbn := normalize.ISBN(rawISBN)
	if !normalize.IsISBNFormat(isbn) {
		return BookInfo{}, apperr.ErrValidation("ISBNは10桁または13桁の数字で入力してください。")
	}

	body, err := c.fetch(ctx, isbn)
	if err != nil {
		log.Printf("[WARN] google books request failed: isbn=%s err=%v", isbn, err)
		return BookInfo{}, apperr.ErrExternalService("書籍情報の取得に失敗しました。時間をおいて再度お試しください。")
	}

	var res volumesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		log.Printf("[WARN] google books response decode failed: isbn=%s err=%v", isbn, err)
		return BookInfo{}, apperr.ErrExternalService("書籍情報の取得に失敗しました。")
	}
	return parse(isbn, res)
}

func (c *Client) fetch(ctx context.Context, isbn string) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", "isbn:"+isbn)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func parse(isbn string, res volumesResponse) (BookInfo, error) {
	if res.TotalItems == 0 || len(res.Items) == 0 {
		return BookInfo{}, apperr.ErrExternalNotFound("該当する書籍が見つかりませんでした。")
	}
	vi := res.Items[0].VolumeInfo
	if vi == nil {
		return BookInfo{}, apperr.ErrExternalService("書籍情報の取得に失敗しました。")
	}

	title := strings.TrimSpace(vi.Title)
	authors := normalize.Dedup(vi.Authors)
	if title == "" || len(authors) == 0 {
		return BookInfo{}, apperr.ErrExternalService("取得した書籍情報が不完全です。")
	}

	info := BookInfo{
		ISBN:          isbn,
		Title:         title,
		Authors:       authors,
		PublishedDate: ParseDate(vi.PublishedDate),
		ImageURL:      pickImage(vi.ImageLinks),
	}
	if p := strings.TrimSpace(vi.Publisher); p != "" {
		info.Publisher = &p
	}
	return info, nil
}

var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseDate は "2006" / "2006-01" / "2006-01-02" を受け付ける。解釈できなければ nil。
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func pickImage(links map[string]string) *string {
	for _, size := range imagePreference {
		if u := strings.TrimSpace(links[size]); u != "" {
			return &u
		}
	}
	return nil
}
