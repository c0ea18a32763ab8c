package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterMonitorRoutes(api gin.IRouter, mc *controllers.MetricsController) {
	dashboard := api.Group("/dashboard")
	{
		dashboard.GET("/stats", mc.GetDashboardStats)
	}
}
