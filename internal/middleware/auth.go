package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/service"
)

// principalKey is the gin context key holding the authenticated principal.
const principalKey = "principal"

// Principal extracts the authenticated principal from the request
// context. The zero value means anonymous.
func Principal(c *gin.Context) service.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(service.Principal); ok {
			return p
		}
	}
	return service.Principal{}
}

// RequireAuth validates the Bearer token and aborts with 401 when it is
// missing or invalid.
func RequireAuth(tokens *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromHeader(c, tokens)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(principalKey, service.Principal{ID: claims.UserID, Username: claims.Username})
		c.Next()
	}
}

// OptionalAuth attaches a principal when a valid Bearer token is
// present and continues anonymously otherwise. Routes with per-resource
// visibility rules use this and let the policy decide.
func OptionalAuth(tokens *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := claimsFromHeader(c, tokens); err == nil {
			c.Set(principalKey, service.Principal{ID: claims.UserID, Username: claims.Username})
		}
		c.Next()
	}
}

func claimsFromHeader(c *gin.Context, tokens *auth.JWTManager) (*auth.Claims, error) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, apperr.Unauthorizedf("authorization token required")
	}
	return tokens.Validate(strings.TrimPrefix(header, "Bearer "))
}
