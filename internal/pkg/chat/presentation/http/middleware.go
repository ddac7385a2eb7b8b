package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
)

const identityKey = "chat.identity"

// RequireAuth validates the bearer credential and stores the identity in the
// request context for downstream handlers.
func RequireAuth(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.Verify(auth.FromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity attached by RequireAuth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
