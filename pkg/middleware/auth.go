package middleware

import (
	"betabay-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the authenticated user id, set by the identity
	// proxy in front of this service. Identity itself is delegated; this
	// service only consumes the resolved id.
	UserIDHeader = "X-User-Id"

	userIDKey = "auth.user_id"
)

// Auth resolves the current user id from the identity proxy header.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(UserIDHeader); userID != "" {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or "" when anonymous.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequireUser aborts the request when no authenticated user is present.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == "" {
			Abort(c, errutil.Unauthorized("authentication required", nil))
			return
		}
		c.Next()
	}
}
