package auth

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"library-backend/internal/platform/apperr"
)

const ctxIdentityKey = "identity"

func abort(c *gin.Context, err *apperr.APIError) {
	c.AbortWithStatusJSON(err.Status, apperr.Body(err))
}

// RequireAuth: Authorization: Bearer <token> を検証して Identity を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abort(c, apperr.ErrUnauthenticated("missing Authorization header"))
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, apperr.ErrUnauthenticated("invalid Authorization header"))
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			abort(c, apperr.ErrUnauthenticated("empty token"))
			return
		}

		id, err := ParseToken(secret, tokenStr)
		if err != nil {
			abort(c, apperr.ErrUnauthenticated("invalid token"))
			return
		}

		c.Set(ctxIdentityKey, id)
		c.Next()
	}
}

// ParseToken は HS256 トークンを検証して Identity を取り出す
func ParseToken(secret []byte, tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		// alg 固定（none攻撃とか回避）
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	if token == nil || !token.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, jwt.ErrTokenInvalidSubject
	}
	uid, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Identity{}, jwt.ErrTokenInvalidSubject
	}

	role, _ := claims["role"].(string)
	return Identity{UserID: uid, Admin: role == RoleAdmin}, nil
}

// AdminChecker は現在の管理者フラグを返す（*Service が実装）
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uint64) (bool, error)
}

// ResolveRole はトークンの role を DB の admin フラグで上書きする。
// 降格がトークン失効を待たずに効くように RequireAuth の後ろに置く。
// chk が nil ならトークンの値をそのまま使う。
func ResolveRole(chk AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolveRole(c, chk) {
			return
		}
		c.Next()
	}
}

func resolveRole(c *gin.Context, chk AdminChecker) bool {
	id, ok := IdentityFrom(c)
	if !ok {
		abort(c, apperr.ErrUnauthenticated("not signed in"))
		return false
	}
	if chk == nil {
		return true
	}
	admin, err := chk.IsAdmin(c.Request.Context(), id.UserID)
	if err != nil {
		log.Printf("[ERROR] resolve role: user=%d err=%v", id.UserID, err)
		abort(c, apperr.ErrInternal("internal error"))
		return false
	}
	id.Admin = admin
	c.Set(ctxIdentityKey, id)
	return true
}

// RequireAdmin は RequireAuth の後ろに置く
func RequireAdmin(chk AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !resolveRole(c, chk) {
			return
		}
		id, _ := IdentityFrom(c)
		if !id.Admin {
			abort(c, apperr.ErrNotPermitted("administrator only"))
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
