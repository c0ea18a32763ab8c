package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterUserRoutes(api gin.IRouter, uc *controllers.UserController) {
	users := api.Group("/users")
	{
		users.GET("", uc.GetUsers)
		users.POST("", uc.CreateUser)
		users.DELETE("/:username", uc.DeleteUser)
		users.POST("/:username/password", uc.ChangePassword)
	}
}
