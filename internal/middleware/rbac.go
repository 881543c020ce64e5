package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rbac-console/internal/permission"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
	"github.com/noah-isme/rbac-console/pkg/response"
)

// RequireCapabilities allows the request only when the caller's role holds every
// listed capability.
func RequireCapabilities(capabilities ...permission.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, capability := range capabilities {
			if !permission.Capable(claims.Role, capability) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "access denied: "+string(capability)+" required"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
