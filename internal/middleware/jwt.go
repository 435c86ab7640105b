package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thwithaphisek/student-behavior-api/internal/service"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
	"github.com/thwithaphisek/student-behavior-api/pkg/response"
)

// ContextAdminKey is the gin context key storing the admin session claims.
const ContextAdminKey = "adminSession"

// AdminJWT protects review routes by requiring a valid admin session token.
func AdminJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextAdminKey, claims)
		c.Next()
	}
}
