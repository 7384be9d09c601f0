package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck godoc
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /health_check [get]
func HealthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
