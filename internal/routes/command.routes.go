package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterCommandRoutes(api gin.IRouter, cc *controllers.CommandController) {
	api.POST("/command", cc.ExecuteCommand)
}
