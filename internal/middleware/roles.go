package middleware

import (
	"net/http"

	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/policy"
	"github.com/gin-gonic/gin"
)

// RequireRoles lets the request through only for callers holding one of roles.
func RequireRoles(reason string, roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.HasRole(CurrentUser(c), roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": reason})
			return
		}
		c.Next()
	}
}

// DenyRoles rejects callers holding one of roles.
func DenyRoles(reason string, roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}
		if policy.HasRole(u, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": reason})
			return
		}
		c.Next()
	}
}
