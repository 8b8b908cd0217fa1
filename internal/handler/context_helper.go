package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-gate-api/internal/middleware"
	"github.com/noah-isme/meal-gate-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext names the caller for audit log lines.
func actorFromContext(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return "anonymous"
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.UserID
}
