package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userIDKey = "userID"

// Middleware authenticates the request and stores the caller's user id in the
// gin context. The chat core trusts this value unchecked.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := VerifyRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   true,
				"message": "unauthorized: " + err.Error(),
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated caller set by Middleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := val.(uuid.UUID)
	return userID, ok
}
