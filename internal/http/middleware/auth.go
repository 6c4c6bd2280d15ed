// Package middleware holds the gateway's HTTP admin-API guard, adapted
// from the teacher's per-user bearer-token AuthMiddleware down to a
// single operator token — user/permission management is an explicit
// Non-goal, but an operator still needs to gate command delivery.
package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"tracker_gateway/pkg/colors"

	"github.com/gin-gonic/gin"
)

// AdminAuth builds a gin middleware that requires "Authorization: Bearer
// <token>" where token's bcrypt hash matches tokenHash. An empty
// tokenHash disables the admin API entirely (every request is rejected),
// matching the teacher's fail-closed posture.
func AdminAuth(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			colors.PrintWarning("admin API request rejected: no ADMIN_TOKEN configured")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin api disabled"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed bearer token"})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(parts[1])); err != nil {
			colors.PrintWarning("admin API request rejected: bad token from %s", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
