package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	ctxUser   = "auth.user"
	ctxClaims = "auth.claims"
)

// JWTAuth resolves the bearer token into the calling user. A token close to
// expiry gets a replacement in the X-New-Token response header.
func JWTAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}
		user, claims, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(header[7:]))
		if errors.Is(err, service.ErrUnauthenticated) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}
		if err != nil {
			logger.From(c.Request.Context()).Error("auth.failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
			return
		}
		c.Set(ctxUser, user)
		c.Set(ctxClaims, claims)
		ctx := c.Request.Context()
		c.Request = c.Request.WithContext(logger.WithContext(ctx, logger.From(ctx).With("uid", user.ID)))

		if token, ok := auth.Renew(user, claims); ok {
			c.Header("X-New-Token", token)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil outside JWTAuth.
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ctxUser); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

func CurrentClaims(c *gin.Context) *service.Claims {
	if v, ok := c.Get(ctxClaims); ok {
		if cl, ok := v.(*service.Claims); ok {
			return cl
		}
	}
	return nil
}
