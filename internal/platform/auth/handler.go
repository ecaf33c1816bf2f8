package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library-backend/internal/platform/apperr"
)

type AuthHandler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &AuthHandler{svc: svc}
	r.POST("/login", h.Login)
	r.POST("/register", h.Register)
	r.GET("/me", RequireAuth(svc.Secret()), h.Me)
}

type LoginRequest struct {
	EmailAddress string `json:"email_address" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name                 string  `json:"name"`
	EmailAddress         string  `json:"email_address"`
	Password             string  `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
}

func fail(c *gin.Context, err error) {
	apperr.Log(c.Request.Method, c.FullPath(), err)
	c.JSON(apperr.ToHTTPStatus(err), apperr.Body(err))
}

// Login godoc
// @Summary  ログインしてトークンを得る
// @Tags     accounts
// @Accept   json
// @Produce  json
// @Param    body body LoginRequest true "credentials"
// @Success  200 {object} map[string]string
// @Failure  401 {object} map[string]any
// @Router   /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.ErrBadRequest("invalid json"))
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.EmailAddress, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Login successful",
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.ErrBadRequest("invalid json"))
		return
	}

	res, err := h.svc.Register(c.Request.Context(), RegisterInput{
		Name:                 req.Name,
		EmailAddress:         req.EmailAddress,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, _ := IdentityFrom(c)
	res, err := h.svc.Me(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
