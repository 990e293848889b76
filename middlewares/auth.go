package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"order-service/clients"
	"order-service/utils"
)

// AuthMiddleware validates the bearer token, exposes the authenticated user
// id on the gin context and stashes the raw token on the request context so
// the outbound clients can forward it to the collaborator services.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		userID, err := utils.ParseToken(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Request = c.Request.WithContext(clients.WithToken(c.Request.Context(), token))
		c.Next()
	}
}
