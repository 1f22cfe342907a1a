// file: internal/server/middleware/auth.go
// version: 2.0.0
// guid: 83c42ecb-1df2-4baf-9890-3f91ab4db6fe

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/bookmeta/internal/auth"
	"github.com/jdfalk/bookmeta/internal/logger"
)

const contextUserKey = "auth_user_id"

// CurrentUserID returns the verified user id set by RequireBearer.
func CurrentUserID(c *gin.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	value, ok := c.Get(contextUserKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

// RequireBearer verifies the Authorization bearer token and stores the
// user id on the context. Requests without a valid token get a 401.
func RequireBearer(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		trail := logger.TrailFrom(c.Request.Context())
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			trail.Warn("request rejected: missing bearer token")
			abortUnauthorized(c, "authentication required")
			return
		}
		if verifier == nil {
			trail.Error("request rejected: no identity verifier configured")
			abortUnauthorized(c, "authentication unavailable")
			return
		}
		userID, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			trail.Warn("request rejected: token verification failed", map[string]interface{}{"error": err.Error()})
			abortUnauthorized(c, "invalid bearer token")
			return
		}
		c.Set(contextUserKey, userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
		"logs":  logger.TrailFrom(c.Request.Context()).Lines(),
	})
}
