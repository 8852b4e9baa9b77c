package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHeader carries the storefront session identifier.
const SessionHeader = "X-Session-Id"

// SessionMiddleware identifies the browsing session of the request. EventSource
// cannot set headers, so the session may also come from the "session" query
// parameter. A new id is issued when neither is present.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		if sessionID == "" {
			sessionID = c.Query("session")
		}
		if sessionID == "" || len(sessionID) > 128 {
			sessionID = uuid.NewString()
		}

		c.Set("session_id", sessionID)
		c.Header(SessionHeader, sessionID)
		c.Next()
	}
}

// GetSessionID returns the session identified by SessionMiddleware.
func GetSessionID(c *gin.Context) string {
	return c.GetString("session_id")
}
