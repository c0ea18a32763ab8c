package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/models"
)

// UserManager manages local accounts
type UserManager interface {
	List() ([]models.UserAccount, error)
	Create(ctx context.Context, username, password string) error
	Delete(ctx context.Context, username string) error
	SetPassword(ctx context.Context, username, password string) error
}

type UserController struct {
	users    UserManager
	security *middleware.SecurityLogger
}

func NewUserController(users UserManager, security *middleware.SecurityLogger) *UserController {
	return &UserController{users: users, security: security}
}

func (uc *UserController) GetUsers(c *gin.Context) {
	users, err := uc.users.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.UserList{Users: users})
}

func (uc *UserController) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		badRequest(c, "Username and password required")
		return
	}

	uc.security.LogPrivileged(c.ClientIP(), middleware.Operator(c), "useradd", req.Username)
	if err := uc.users.Create(c.Request.Context(), req.Username, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "User " + req.Username + " created"})
}

func (uc *UserController) DeleteUser(c *gin.Context) {
	username := c.Param("username")

	uc.security.LogPrivileged(c.ClientIP(), middleware.Operator(c), "userdel", username)
	if err := uc.users.Delete(c.Request.Context(), username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "User " + username + " deleted"})
}

func (uc *UserController) ChangePassword(c *gin.Context) {
	username := c.Param("username")
	var req models.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		badRequest(c, "Password required")
		return
	}

	uc.security.LogPrivileged(c.ClientIP(), middleware.Operator(c), "chpasswd", username)
	if err := uc.users.SetPassword(c.Request.Context(), username, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "Password changed for " + username})
}
