package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/services"
)

type LogController struct {
	logs *services.LogService
}

func NewLogController(logs *services.LogService) *LogController {
	return &LogController{logs: logs}
}

func (lc *LogController) ListLogFiles(c *gin.Context) {
	files, err := lc.logs.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.LogFileList{LogFiles: files})
}

// TailLog returns the last lines of a log file. lines defaults to 100 and is
// clamped to the configured maximum.
func (lc *LogController) TailLog(c *gin.Context) {
	lines := services.DefaultLogLines
	if raw := c.Query("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "lines must be a number")
			return
		}
		lines = n
	}

	tail, err := lc.logs.Tail(c.Query("file"), lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tail)
}
