package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/models"
)

// ProcessManager lists and terminates host processes
type ProcessManager interface {
	List(ctx context.Context) ([]models.ProcessInfo, error)
	Kill(ctx context.Context, pid int32) error
}

type ProcessController struct {
	procs    ProcessManager
	security *middleware.SecurityLogger
}

func NewProcessController(procs ProcessManager, security *middleware.SecurityLogger) *ProcessController {
	return &ProcessController{procs: procs, security: security}
}

// GetProcesses returns every process sorted by memory usage
func (pc *ProcessController) GetProcesses(c *gin.Context) {
	processes, err := pc.procs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProcessList{Processes: processes})
}

// KillProcess sends SIGTERM to the process named in the path
func (pc *ProcessController) KillProcess(c *gin.Context) {
	pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
	if err != nil || pid <= 0 {
		badRequest(c, "Invalid process id")
		return
	}

	pc.security.LogPrivileged(c.ClientIP(), middleware.Operator(c), "kill", c.Param("pid"))
	if err := pc.procs.Kill(c.Request.Context(), int32(pid)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: fmt.Sprintf("Process %d terminated", pid)})
}
