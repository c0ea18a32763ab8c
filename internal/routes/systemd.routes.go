package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterServiceRoutes(api gin.IRouter, sc *controllers.SystemdController) {
	units := api.Group("/services")
	{
		units.GET("", sc.GetServices)
		units.POST("/:name/:action", sc.ServiceAction)
	}
}
