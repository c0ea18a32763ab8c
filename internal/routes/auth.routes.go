package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers login, logout and session check. Only logout
// requires a session; login is throttled per IP.
func RegisterAuthRoutes(api *gin.RouterGroup, ac *controllers.AuthController, requireSession, loginLimit gin.HandlerFunc) {
	api.POST("/login", loginLimit, ac.Login)
	api.GET("/check-auth", ac.CheckAuth)
	api.POST("/logout", requireSession, ac.Logout)
}

// RegisterStreamRoutes registers the live stats websocket
func RegisterStreamRoutes(r gin.IRouter, wc *controllers.WebSocketController) {
	r.GET("/ws", wc.HandleWebSocket)
}
