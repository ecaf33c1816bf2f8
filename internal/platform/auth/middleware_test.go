package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", RequireAuth(svc.Secret()), func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID})
	})
	r.GET("/admin", RequireAuth(svc.Secret()), RequireAdmin(svc), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/role", RequireAuth(svc.Secret()), ResolveRole(svc), func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"admin": id.Admin})
	})
	return r
}

func doGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	svc, _ := testService()
	r := newRouter(svc)

	w := doGet(r, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"unauthenticated"`)

	w = doGet(r, "/private", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := svc.IssueToken(&User{ID: 7})
	require.NoError(t, err)
	w = doGet(r, "/private", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	svc, st := testService()
	r := newRouter(svc)
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &User{Name: "user"}))
	require.NoError(t, st.Create(ctx, &User{Name: "admin", Admin: true}))

	userToken, err := svc.IssueToken(&User{ID: 1})
	require.NoError(t, err)
	w := doGet(r, "/admin", userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_permitted"`)

	adminToken, err := svc.IssueToken(&User{ID: 2, Admin: true})
	require.NoError(t, err)
	w = doGet(r, "/admin", adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAdminRereadsRole(t *testing.T) {
	svc, st := testService()
	r := newRouter(svc)
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &User{Name: "admin", Admin: true}))

	// 発行時は admin
	tok, err := svc.IssueToken(&User{ID: 1, Admin: true})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, doGet(r, "/admin", tok).Code)

	// 降格はトークン失効前でも効く
	require.NoError(t, st.SetAdmin(ctx, 1, false))
	w := doGet(r, "/admin", tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doGet(r, "/role", tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admin":false}`, w.Body.String())

	// ユーザー行が無ければ admin 扱いしない
	ghost, err := svc.IssueToken(&User{ID: 99, Admin: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, doGet(r, "/admin", ghost).Code)
}
