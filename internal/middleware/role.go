package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
)

// RequireRole only lets requests through whose authenticated role is one of
// roles. It must run after AuthMiddleware.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if c.GetString(ContextUserID) == "" {
			abortWithAppError(c, apperrors.ErrUnauthorized)
			return
		}
		for _, r := range roles {
			if role == string(r) {
				c.Next()
				return
			}
		}
		abortWithAppError(c, apperrors.ErrForbidden)
	}
}
