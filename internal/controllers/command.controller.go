package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/models"
)

// CommandExecutor runs one shell command on the host
type CommandExecutor interface {
	Execute(ctx context.Context, command string) (*models.CommandResult, error)
}

type CommandController struct {
	exec     CommandExecutor
	security *middleware.SecurityLogger
}

func NewCommandController(exec CommandExecutor, security *middleware.SecurityLogger) *CommandController {
	return &CommandController{exec: exec, security: security}
}

// ExecuteCommand runs the posted command. Blocked commands answer 403.
func (cc *CommandController) ExecuteCommand(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Command required")
		return
	}

	cc.security.LogPrivileged(c.ClientIP(), middleware.Operator(c), "command", req.Command)
	result, err := cc.exec.Execute(c.Request.Context(), req.Command)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
