package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterProcessRoutes(api gin.IRouter, pc *controllers.ProcessController) {
	processes := api.Group("/processes")
	{
		processes.GET("", pc.GetProcesses)
		processes.POST("/:pid/kill", pc.KillProcess)
	}
}
