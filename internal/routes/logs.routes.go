package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterLogRoutes(api gin.IRouter, lc *controllers.LogController) {
	logs := api.Group("/logs")
	{
		logs.GET("", lc.TailLog)
		logs.GET("/list", lc.ListLogFiles)
	}
}
