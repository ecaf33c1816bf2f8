package lending

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"library-backend/internal/platform/apperr"
	"library-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service, secret []byte, chk auth.AdminChecker) {
	h := &Handler{svc: svc}
	// 他人の貸出を扱えるかは DB の admin フラグで決める
	authn, role := auth.RequireAuth(secret), auth.ResolveRole(chk)

	r.POST("/lendings", authn, role, h.Create)
	r.DELETE("/lendings/:lending_ulid", authn, role, h.Return)
	r.GET("/lendings", authn, role, h.List)
}

// ---------- handlers ----------

// Create godoc
// @Summary  本を借りる
// @Tags     lendings
// @Accept   json
// @Produce  json
// @Param    body body CreateLendingRequest true "book"
// @Success  201 {object} LendingResponse
// @Failure  409 {object} map[string]any "在庫なし"
// @Security Bearer
// @Router   /lendings [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateLendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.ErrBadRequest("invalid json"))
		return
	}
	res, err := h.svc.LendTo(c.Request.Context(), identity(c), req.BookID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Location", "/lendings/"+res.LendingULID)
	c.JSON(http.StatusCreated, res)
}

// Return godoc
// @Summary  返却する
// @Tags     lendings
// @Produce  json
// @Param    lending_ulid path string true "lending ulid"
// @Success  200 {object} LendingResponse
// @Failure  404 {object} map[string]any
// @Failure  409 {object} map[string]any "返却済み"
// @Security Bearer
// @Router   /lendings/{lending_ulid} [delete]
func (h *Handler) Return(c *gin.Context) {
	res, err := h.svc.ReturnLoan(c.Request.Context(), identity(c), c.Param("lending_ulid"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// List godoc
// @Summary  貸出一覧（一般ユーザーは自分の分のみ）
// @Tags     lendings
// @Produce  json
// @Param    outstanding query bool false "未返却のみ"
// @Param    user_id     query int  false "利用者（管理者のみ有効）"
// @Param    book_id     query int  false "本"
// @Param    limit       query int  false "件数（既定50）"
// @Param    offset      query int  false "開始位置"
// @Success  200 {object} ListResult
// @Security Bearer
// @Router   /lendings [get]
func (h *Handler) List(c *gin.Context) {
	p := ListParams{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	if v := c.Query("outstanding"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.Outstanding = b
		}
	}
	if v, ok := parseUint(c.Query("user_id")); ok {
		p.UserID = &v
	}
	if v, ok := parseUint(c.Query("book_id")); ok {
		p.BookID = &v
	}
	res, err := h.svc.List(c.Request.Context(), identity(c), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
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

func parseUint(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

func fail(c *gin.Context, err error) {
	apperr.Log(c.Request.Method, c.FullPath(), err)
	c.JSON(apperr.ToHTTPStatus(err), apperr.Body(err))
}
