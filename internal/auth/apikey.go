package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/apikey"
)

const projectIDKey = "ProjectID"

// APIKey authorizes ingestion calls. The credential comes from x-api-key or
// a bearer Authorization header and resolves to the owning project, which is
// injected into the request context.
func APIKey(keys apikey.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("x-api-key"))
		if token == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				token = strings.TrimSpace(authHeader[7:])
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}

		key, err := keys.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
			return
		}
		if key == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}

		c.Set(projectIDKey, key.ProjectID)
		c.Next()
	}
}

// ProjectID extracts the project resolved by the APIKey middleware.
func ProjectID(c *gin.Context) (int64, bool) {
	val, exists := c.Get(projectIDKey)
	if !exists {
		return 0, false
	}
	id, ok := val.(int64)
	return id, ok
}
