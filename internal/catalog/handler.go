package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// chk は admin フラグの再確認に使う（nil ならトークンの role のみ）
func RegisterRoutes(r gin.IRoutes, svc *Service, secret []byte, chk auth.AdminChecker) {
	h := &Handler{svc: svc}
	authn, admin := auth.RequireAuth(secret), auth.RequireAdmin(chk)

	// 閲覧は未ログインでも可
	r.GET("/books", h.Search)
	r.GET("/books/:id", h.Get)

	r.POST("/books", authn, admin, h.Create)
	r.PATCH("/books/:id", authn, admin, h.Update)
	r.DELETE("/books/:id", authn, admin, h.Destroy)

	// ISBN 検索・登録
	r.GET("/books/isbn/:isbn", authn, admin, h.LookupByISBN)
	r.POST("/books/isbn", authn, admin, h.RegisterFromISBN)
}

// ---------- handlers ----------

// Search godoc
// @Summary  本の検索
// @Tags     books
// @Produce  json
// @Param    q    query string false "タイトル・ISBN・著者・タグの部分一致"
// @Param    sort query string false "newest | title_asc | published_desc"
// @Param    page query int    false "ページ番号（1始まり）"
// @Success  200 {object} SearchResult
// @Router   /books [get]
func (h *Handler) Search(c *gin.Context) {
	page := parseIntDefault(c.Query("page"), 1)
	res, err := h.svc.Search(c.Request.Context(), c.Query("q"), c.Query("sort"), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get godoc
// @Summary  本の詳細
// @Tags     books
// @Produce  json
// @Param    id path int true "book id"
// @Success  200 {object} BookResponse
// @Failure  404 {object} map[string]any
// @Router   /books/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Create godoc
// @Summary  本の登録（手入力）
// @Tags     books
// @Accept   json
// @Produce  json
// @Param    body body CreateBookRequest true "book"
// @Success  201 {object} BookResponse
// @Failure  422 {object} map[string]any
// @Security Bearer
// @Router   /books [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.ErrBadRequest("invalid json"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), identity(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Location", "/books/"+strconv.FormatUint(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

// Update godoc
// @Summary  本の更新（指定した項目だけ変更）
// @Tags     books
// @Accept   json
// @Produce  json
// @Param    id   path int               true "book id"
// @Param    body body UpdateBookRequest true "変更する項目"
// @Success  200 {object} BookResponse
// @Failure  404 {object} map[string]any
// @Failure  422 {object} map[string]any
// @Security Bearer
// @Router   /books/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.ErrBadRequest("invalid json"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), identity(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Destroy godoc
// @Summary  本の削除
// @Tags     books
// @Param    id path int true "book id"
// @Success  204
// @Failure  404 {object} map[string]any
// @Failure  422 {object} map[string]any "貸出中"
// @Security Bearer
// @Router   /books/{id} [delete]
func (h *Handler) Destroy(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	if err := h.svc.Destroy(c.Request.Context(), identity(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LookupByISBN godoc
// @Summary  外部カタログで ISBN を検索（保存しない）
// @Tags     books
// @Produce  json
// @Param    isbn path string true "ISBN-10 / ISBN-13"
// @Success  200 {object} lookup.BookInfo
// @Failure  404 {object} map[string]any
// @Failure  503 {object} map[string]any
// @Security Bearer
// @Router   /books/isbn/{isbn} [get]
func (h *Handler) LookupByISBN(c *gin.Context) {
	res, err := h.svc.LookupByISBN(c.Request.Context(), identity(c), c.Param("isbn"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RegisterFromISBN godoc
// @Summary  ISBN から本を登録
// @Tags     books
// @Accept   json
// @Produce  json
// @Param    body body RegisterFromISBNRequest true "isbn と在庫数（省略時1）"
// @Success  201 {object} BookResponse
// @Failure  404 {object} map[string]any "外部カタログに該当なし"
// @Failure  422 {object} map[string]any
// @Failure  503 {object} map[string]any
// @Security Bearer
// @Router   /books/isbn [post]
func (h *Handler) RegisterFromISBN(c *gin.Context) {
	var req RegisterFromISBNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.ErrBadRequest("invalid json"))
		return
	}
	res, err := h.svc.RegisterFromISBN(c.Request.Context(), identity(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Location", "/books/"+strconv.FormatUint(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

// ---------- helpers ----------

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
}

func bookID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, apperr.ErrBadRequest("invalid book id"))
		return 0, false
	}
	return id, true
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func fail(c *gin.Context, err error) {
	apperr.Log(c.Request.Method, c.FullPath(), err)
	c.JSON(apperr.ToHTTPStatus(err), apperr.Body(err))
}
