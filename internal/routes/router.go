package routes

import (
	"net/http"

	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/controllers"
	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Controllers bundles every handler set served by the agent
type Controllers struct {
	Auth      *controllers.AuthController
	Metrics   *controllers.MetricsController
	Processes *controllers.ProcessController
	Systemd   *controllers.SystemdController
	Files     *controllers.FileController
	Logs      *controllers.LogController
	Users     *controllers.UserController
	Command   *controllers.CommandController
	WebSocket *controllers.WebSocketController
}

// RouterOptions carries the middleware dependencies
type RouterOptions struct {
	Security    config.SecurityConfig
	TLS         bool
	Auth        *services.AuthService
	SecurityLog *middleware.SecurityLogger
	Logger      zerolog.Logger
}

// NewRouter assembles the agent's gin engine
func NewRouter(ctrl Controllers, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.SecurityHeadersMiddleware(opts.TLS))
	r.Use(middleware.CORSMiddleware(opts.Security.AllowedOrigins))
	r.Use(middleware.IPWhitelistMiddleware(middleware.NewIPWhitelist(opts.Security.AllowedIPs), opts.SecurityLog))

	general := middleware.NewRateLimiter(rate.Limit(opts.Security.RequestsPerSecond), opts.Security.Burst)
	r.Use(middleware.RateLimitMiddleware(general, "api", opts.SecurityLog))

	login := middleware.NewRateLimiter(middleware.PerMinute(opts.Security.LoginPerMinute), max(1, int(opts.Security.LoginPerMinute)))
	loginLimit := middleware.RateLimitMiddleware(login, "login", opts.SecurityLog)
	requireSession := middleware.RequireSession(opts.Auth, opts.SecurityLog)

	api := r.Group("/api")
	RegisterAuthRoutes(api, ctrl.Auth, requireSession, loginLimit)

	protected := api.Group("", requireSession)
	RegisterMonitorRoutes(protected, ctrl.Metrics)
	RegisterProcessRoutes(protected, ctrl.Processes)
	RegisterServiceRoutes(protected, ctrl.Systemd)
	RegisterFileRoutes(protected, ctrl.Files)
	RegisterLogRoutes(protected, ctrl.Logs)
	RegisterUserRoutes(protected, ctrl.Users)
	RegisterCommandRoutes(protected, ctrl.Command)

	RegisterStreamRoutes(r, ctrl.WebSocket)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}
