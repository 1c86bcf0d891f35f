package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/fixology/fixology/internal/auth/domain"
	"github.com/fixology/fixology/internal/requestctx"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := requestctx.WithClientIP(c.Request.Context(), c.ClientIP())
	ctx = requestctx.WithUserAgent(ctx, c.Request.UserAgent())

	result, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:    strings.TrimSpace(body.Email),
		Password: body.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) Logout(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	value, ok := c.Get(contextAdminKey)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	admin, ok := value.(*authdomain.AdminUser)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, admin)
}
