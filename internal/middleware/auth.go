package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/At4lian/VQCC/internal/security"
)

const ownerIDKey = "owner_id"

// Auth accepts an end-user access token and stores the owner id on the
// context.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		owner, err := security.ParseAccessToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(ownerIDKey, owner)
		c.Next()
	}
}

// RequireBearer guards a surface with a static shared secret. An empty
// secret rejects every request.
func RequireBearer(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(tokenStr), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func OwnerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
