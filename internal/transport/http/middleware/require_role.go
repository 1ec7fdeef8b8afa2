package middleware

import (
	"net/http"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/identity"
	"github.com/gin-gonic/gin"
)

const errForbidden = "You do not have permission to perform this action"

// RequireRole allows the request through only when the authenticated
// identity holds one of the given roles. Running it on a route without
// Auth in front is a wiring bug; it fails closed with a 500 rather than
// letting the request pass.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := identity.FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": "Internal server error"})
			return
		}

		for _, role := range roles {
			if ident.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden})
	}
}
