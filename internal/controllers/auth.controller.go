package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/models"
	"github.com/high001/webpanel/internal/services"
)

// AuthController serves login, logout and session checks
type AuthController struct {
	auth         *services.AuthService
	security     *middleware.SecurityLogger
	secureCookie bool
}

func NewAuthController(auth *services.AuthService, security *middleware.SecurityLogger, secureCookie bool) *AuthController {
	return &AuthController{auth: auth, security: security, secureCookie: secureCookie}
}

// Login verifies operator credentials and issues a session token
func (ac *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		badRequest(c, "Username and password required")
		return
	}

	if err := ac.auth.Authenticate(req.Username, req.Password); err != nil {
		ac.security.LogFailedAuth(c.ClientIP(), "bad credentials for "+sanitize(req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Invalid credentials",
			"error":   "Invalid credentials",
		})
		return
	}

	token, _, err := ac.auth.GenerateToken(req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.security.LogTokenIssued(c.ClientIP(), req.Username)

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, token, int(ac.auth.TokenTTL().Seconds()), "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, models.LoginResponse{Success: true, Message: "Login successful", Token: token})
}

// Logout revokes the current session token
func (ac *AuthController) Logout(c *gin.Context) {
	if claims, ok := middleware.Claims(c); ok {
		ac.auth.Revoke(claims)
		ac.security.LogLogout(c.ClientIP(), claims.Username)
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "Logged out"})
}

// CheckAuth reports whether the request carries a valid session
func (ac *AuthController) CheckAuth(c *gin.Context) {
	token := middleware.ExtractToken(c)
	if token != "" {
		if claims, err := ac.auth.ValidateToken(token); err == nil {
			c.JSON(http.StatusOK, models.AuthStatus{Authenticated: true, Username: claims.Username})
			return
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false, "error": "Authentication required"})
}

// sanitize keeps attacker-controlled names out of logs when they look odd
func sanitize(name string) string {
	if middleware.NewInputValidator().ValidateUsername(name) {
		return name
	}
	return "<invalid>"
}
