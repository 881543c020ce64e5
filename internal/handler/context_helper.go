package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rbac-console/internal/middleware"
	"github.com/noah-isme/rbac-console/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
