package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/models"
)

// StatsSource yields the current dashboard snapshot
type StatsSource interface {
	Get() (*models.DashboardStats, error)
}

type MetricsController struct {
	stats StatsSource
}

func NewMetricsController(stats StatsSource) *MetricsController {
	return &MetricsController{stats: stats}
}

func (mc *MetricsController) GetDashboardStats(c *gin.Context) {
	stats, err := mc.stats.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
