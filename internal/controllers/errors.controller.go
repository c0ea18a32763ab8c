package controllers

import (
	"errors"
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/services"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

var errorTable = []errorMapping{
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{services.ErrSessionExpired, http.StatusUnauthorized, "Session expired"},
	{services.ErrSessionRevoked, http.StatusUnauthorized, "Session expired"},
	{services.ErrProcessNotFound, http.StatusNotFound, "Process not found"},
	{services.ErrAccessDenied, http.StatusForbidden, "Access denied"},
	{services.ErrInvalidAction, http.StatusBadRequest, "Invalid action"},
	{services.ErrInvalidService, http.StatusBadRequest, "Invalid service name"},
	{services.ErrPathRequired, http.StatusBadRequest, "Path required"},
	{services.ErrInvalidPath, http.StatusBadRequest, "Invalid path"},
	{services.ErrPathNotFound, http.StatusNotFound, "Path does not exist"},
	{services.ErrNotDirectory, http.StatusBadRequest, "Path is not a directory"},
	{services.ErrFileNotFound, http.StatusNotFound, "File not found"},
	{services.ErrNoFile, http.StatusBadRequest, "No file selected"},
	{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "File too large"},
	{services.ErrInvalidLogFile, http.StatusBadRequest, "Invalid log file"},
	{services.ErrLogNotFound, http.StatusNotFound, "Log file not found"},
	{services.ErrUserExists, http.StatusBadRequest, "User already exists"},
	{services.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{services.ErrInvalidUsername, http.StatusBadRequest, "Invalid username"},
	{services.ErrPasswordMissing, http.StatusBadRequest, "Password required"},
	{services.ErrInvalidPassword, http.StatusBadRequest, "Password must be a single line"},
	{services.ErrEmptyCommand, http.StatusBadRequest, "Command required"},
	{services.ErrCommandBlocked, http.StatusForbidden, "Command not allowed for security reasons"},
	{services.ErrCommandTimeout, http.StatusInternalServerError, "Command timeout"},
}

// respondError writes the uniform {error} body for err
func respondError(c *gin.Context, err error) {
	status, msg := classify(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.message
		}
	}

	var cmdErr *services.CommandError
	if errors.As(err, &cmdErr) {
		return http.StatusInternalServerError, cmdErr.Message
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return http.StatusInternalServerError, execErr.Name + " not found on this host"
	}
	return http.StatusInternalServerError, err.Error()
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
