package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"switchfleet/auth"
)

const claimsKey = "claims"

// RequireAuth validates the Bearer token and stores the claims in the context
func (m *Manager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		claims, err := m.auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin rejects non-admin identities; must run after RequireAuth
func (m *Manager) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ClaimsFrom(c).IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims RequireAuth stored on the context
func ClaimsFrom(c *gin.Context) auth.Claims {
	claims, _ := c.Get(claimsKey)
	cl, _ := claims.(auth.Claims)
	return cl
}
