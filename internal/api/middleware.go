package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenSource exposes the access token the panel API authenticates against.
// The panel accepts only the token of the session it is guarding; there is
// no user database behind it.
type TokenSource interface {
	AccessToken() string
}

// AuthMiddleware rejects requests that do not carry the current session's
// bearer token. With no session established every request is rejected.
func AuthMiddleware(tokens TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		current := tokens.AccessToken()
		if token == "" || current == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
