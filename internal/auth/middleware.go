package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall/internal/apperr"
	"rollcall/internal/model"
)

const userKey = "auth.user"

// RequireUser enforces a bearer token and stores the resolved user on the
// request context.
func RequireUser(g *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(apperr.Status(apperr.ErrTokenInvalid), gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		u, err := g.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// RequireRole rejects users without role. It must run after RequireUser.
func RequireRole(g *Guard, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := g.Authorize(CurrentUser(c), role); err != nil {
			c.AbortWithStatusJSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireUser, or the zero User.
func CurrentUser(c *gin.Context) model.User {
	v, _ := c.Get(userKey)
	u, _ := v.(model.User)
	return u
}
