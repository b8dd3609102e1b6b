package middlewares

import (
	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/gin-gonic/gin"
)

// RequireRole admits identities whose role is in allowed. It must run after
// RequireAuth; without an identity it answers 401.
func (m *AuthMiddleware) RequireRole(allowed ...user.Role) gin.HandlerFunc {
	set := make(map[user.Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok {
			respond.Fail(c, apperr.Unauthorized("Authentication required"))
			return
		}
		if _, allowed := set[role]; !allowed {
			respond.Fail(c, apperr.Forbidden("Insufficient permissions"))
			return
		}
		c.Next()
	}
}
