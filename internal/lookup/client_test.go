package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/config"
)

type fakeAPI struct {
	hits   atomic.Int32
	lastQ  atomic.Value
	status int
	body   string
	delay  time.Duration
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	f.lastQ.Store(r.URL.Query().Get("q"))
	if f.delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(f.delay):
		}
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(f.body))
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(config.LookupConfig{
		BaseURL:        srv.URL + "/books/v1/volumes",
		ConnectTimeout: 500 * time.Millisecond,
		ReadTimeout:    300 * time.Millisecond,
		UserAgent:      "test",
	})
}

const fullResponse = `{
  "totalItems": 1,
  "items": [{
    "volumeInfo": {
      "title": "  リーダブルコード ",
      "authors": ["Dustin Boswell", " Trevor Foucher ", "Dustin Boswell", ""],
      "publisher": "オライリージャパン",
      "publishedDate": "2012-06",
      "imageLinks": {"smallThumbnail": "http://img/s", "thumbnail": "http://img/t"}
    }
  }]
}`

func TestLookupSuccess(t *testing.T) {
	api := &fakeAPI{body: fullResponse}
	c := newTestClient(t, api)

	info, err := c.Lookup(context.Background(), "978-4-87311-565-8")
	require.NoError(t, err)
	assert.Equal(t, "isbn:9784873115658", api.lastQ.Load())
	assert.Equal(t, "9784873115658", info.ISBN)
	assert.Equal(t, "リーダブルコード", info.Title)
	assert.Equal(t, []string{"Dustin Boswell", "Trevor Foucher"}, info.Authors)
	require.NotNil(t, info.Publisher)
	assert.Equal(t, "オライリージャパン", *info.Publisher)
	require.NotNil(t, info.PublishedDate)
	assert.Equal(t, time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC), *info.PublishedDate)
	require.NotNil(t, info.ImageURL)
	assert.Equal(t, "http://img/t", *info.ImageURL)
}

func TestLookupInvalidISBNMakesNoRequest(t *testing.T) {
	api := &fakeAPI{body: fullResponse}
	c := newTestClient(t, api)

	for _, in := range []string{"1234567", "", "978-4-87311-565-X", "12345678901"} {
		_, err := c.Lookup(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.CodeValidation), in)
	}
	assert.Equal(t, int32(0), api.hits.Load())
}

func TestLookupErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		api  *fakeAPI
		code apperr.Code
	}{
		{"zero items", &fakeAPI{body: `{"totalItems":0}`}, apperr.CodeExternalNotFound},
		{"items missing", &fakeAPI{body: `{"totalItems":3,"items":[]}`}, apperr.CodeExternalNotFound},
		{"no volume info", &fakeAPI{body: `{"totalItems":1,"items":[{}]}`}, apperr.CodeExternalService},
		{"blank title", &fakeAPI{body: `{"totalItems":1,"items":[{"volumeInfo":{"title":" ","authors":["a"]}}]}`}, apperr.CodeExternalService},
		{"no authors", &fakeAPI{body: `{"totalItems":1,"items":[{"volumeInfo":{"title":"t"}}]}`}, apperr.CodeExternalService},
		{"blank authors", &fakeAPI{body: `{"totalItems":1,"items":[{"volumeInfo":{"title":"t","authors":[" "]}}]}`}, apperr.CodeExternalService},
		{"server error", &fakeAPI{status: http.StatusInternalServerError, body: `oops`}, apperr.CodeExternalService},
		{"broken json", &fakeAPI{body: `{"totalItems":`}, apperr.CodeExternalService},
		{"timeout", &fakeAPI{body: fullResponse, delay: 2 * time.Second}, apperr.CodeExternalService},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.api)
			_, err := c.Lookup(context.Background(), "4873115655")
			require.Error(t, err)
			api, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, api.Code)
			assert.Equal(t, int32(1), tc.api.hits.Load())
		})
	}
}

func TestLookupNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.LookupConfig{BaseURL: url, ConnectTimeout: 200 * time.Millisecond, ReadTimeout: 200 * time.Millisecond})
	_, err := c.Lookup(context.Background(), "4873115655")
	assert.True(t, apperr.Is(err, apperr.CodeExternalService))
}

func TestParseDate(t *testing.T) {
	d := func(y int, m time.Month, day int) *time.Time {
		v := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		return &v
	}
	cases := map[string]*time.Time{
		"2012":       d(2012, 1, 1),
		"2012-06":    d(2012, 6, 1),
		"2012-06-24": d(2012, 6, 24),
		" 1999 ":     d(1999, 1, 1),
		"":           nil,
		"2012/06/24": nil,
		"June 2012":  nil,
		"2012-13":    nil,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDate(in), in)
	}
}

func TestPickImage(t *testing.T) {
	assert.Nil(t, pickImage(nil))
	assert.Nil(t, pickImage(map[string]string{"extraLarge": ""}))

	got := pickImage(map[string]string{"thumbnail": "t", "medium": "m", "smallThumbnail": "s"})
	require.NotNil(t, got)
	assert.Equal(t, "m", *got)

	got = pickImage(map[string]string{"large": "l", "medium": "m"})
	require.NotNil(t, got)
	assert.Equal(t, "l", *got)
}
