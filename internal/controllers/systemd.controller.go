package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/services"
)

// ServiceManager lists systemd units and changes their state
type ServiceManager interface {
	List(ctx context.Context) ([]models.ServiceInfo, error)
	Action(ctx context.Context, name, action string) error
}

type SystemdController struct {
	units    ServiceManager
	security *middleware.SecurityLogger
}

func NewSystemdController(units ServiceManager, security *middleware.SecurityLogger) *SystemdController {
	return &SystemdController{units: units, security: security}
}

func (sc *SystemdController) GetServices(c *gin.Context) {
	units, err := sc.units.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ServiceList{Services: units})
}

// ServiceAction runs start, stop, restart or reload on one unit
func (sc *SystemdController) ServiceAction(c *gin.Context) {
	name, action := c.Param("name"), c.Param("action")
	if !models.ValidServiceAction(action) {
		badRequest(c, "Invalid action")
		return
	}

	sc.security.LogPrivileged(c.ClientIP(), middleware.Operator(c), "service "+action, name)
	if err := sc.units.Action(c.Request.Context(), name, action); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{
		Success: true,
		Message: "Service " + name + " " + services.ActionPastTense(action) + " successfully",
	})
}
