package handler

import (
	"net/http"

	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/middleware"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ auth *service.AuthService }

func NewAuthHandler(auth *service.AuthService) *AuthHandler { return &AuthHandler{auth: auth} }

// POST /api/login  body: {"email":"...","password":"..."}
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	u, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logger.From(c.Request.Context()).Warn("login.failed", "email", req.Email)
		fail(c, err)
		return
	}

	logger.From(c.Request.Context()).Info("login.ok", "uid", u.ID, "role", u.Role)
	c.JSON(http.StatusOK, model.LoginResponse{User: u, Token: token})
}

// POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		fail(c, service.ErrUnauthenticated)
		return
	}
	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		fail(c, err)
		return
	}
	logger.From(c.Request.Context()).Info("logout.ok", "uid", claims.UserID())
	c.JSON(http.StatusOK, gin.H{"message": "Déconnexion réussie"})
}

// GET /api/user
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}
