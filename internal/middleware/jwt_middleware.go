package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// JWTMiddleware parses storefront bearer tokens into an account.
type JWTMiddleware struct {
	secret      string
	rateLimiter *InvalidAuthRateLimiter
}

func NewJWTMiddleware(secret string, rateLimiter *InvalidAuthRateLimiter) *JWTMiddleware {
	return &JWTMiddleware{secret: secret, rateLimiter: rateLimiter}
}

// Optional lets guests through untouched and rejects only malformed or
// invalid tokens. A valid token sets "account" and "token" on the context.
func (m *JWTMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		if m.rateLimiter != nil && m.rateLimiter.Blocked(c.ClientIP()) {
			utils.Error(c, 429, "RATE_LIMITED", "Too many invalid authentication attempts")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.reject(c, "Invalid authorization header")
			return
		}

		claims, err := utils.ValidateJWT(m.secret, parts[1])
		if err != nil {
			m.reject(c, "Invalid or expired token")
			return
		}

		c.Set("account", claims.Account())
		c.Set("token", parts[1])
		c.Next()
	}
}

// Required rejects requests without a valid bearer token.
func (m *JWTMiddleware) Required() gin.HandlerFunc {
	optional := m.Optional()
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			utils.Error(c, 401, "AUTH_REQUIRED", "Missing authorization header")
			c.Abort()
			return
		}
		optional(c)
	}
}

func (m *JWTMiddleware) reject(c *gin.Context, message string) {
	if m.rateLimiter != nil {
		m.rateLimiter.Record(c.ClientIP())
	}
	utils.Error(c, 401, "INVALID_TOKEN", message)
	c.Abort()
}

// GetAccount returns the account parsed from the bearer token, or nil.
func GetAccount(c *gin.Context) *models.Account {
	if v, ok := c.Get("account"); ok {
		if account, ok := v.(*models.Account); ok {
			return account
		}
	}
	return nil
}

// GetToken returns the raw bearer token of an authenticated request.
func GetToken(c *gin.Context) string {
	return c.GetString("token")
}
