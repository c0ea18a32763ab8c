package routes

import (
	"github.com/high001/webpanel/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterFileRoutes(api gin.IRouter, fc *controllers.FileController) {
	files := api.Group("/files")
	{
		files.GET("", fc.ListFiles)
		files.GET("/download", fc.DownloadFile)
		files.POST("/upload", fc.UploadFile)
	}
}
