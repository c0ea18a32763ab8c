package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter implements token bucket rate limiting per IP
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing limit events per second per IP
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// PerMinute converts a per-minute budget to a rate.Limit
func PerMinute(n float64) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Duration(float64(time.Minute) / n))
}

// GetLimiter gets or creates a limiter for an IP address
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[ip] = limiter
	return limiter
}

// RateLimitMiddleware enforces rate limiting per IP. scope names the limiter
// in security logs.
func RateLimitMiddleware(limiter *RateLimiter, scope string, sl *SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			sl.LogRateLimited(ip, scope)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
			})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers to all responses
func SecurityHeadersMiddleware(tls bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		if tls {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// OriginAllowed reports whether origin matches the allow list. Entries may be
// full origins, "*", or bare hosts.
func OriginAllowed(origin string, allowedOrigins []string) bool {
	normalized := strings.TrimRight(origin, "/")
	if normalized == "" {
		return false
	}
	for _, o := range allowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(o), "/")
		if trimmed == "" {
			continue
		}
		if trimmed == "*" || normalized == trimmed {
			return true
		}
		if !strings.Contains(trimmed, "://") {
			if parsed, err := url.Parse(normalized); err == nil && parsed.Host == trimmed {
				return true
			}
		}
	}
	return false
}

// CORSMiddleware answers cross-origin requests from the allowed origins only
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if OriginAllowed(origin, allowedOrigins) {
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Origin", strings.TrimRight(origin, "/"))
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// IPWhitelist restricts access to a set of client addresses
type IPWhitelist struct {
	ips map[string]bool
}

// NewIPWhitelist creates a new IP whitelist. An empty list allows everyone.
func NewIPWhitelist(ips []string) *IPWhitelist {
	wl := &IPWhitelist{ips: make(map[string]bool)}
	for _, ip := range ips {
		if ip = strings.TrimSpace(ip); ip != "" {
			wl.ips[ip] = true
		}
	}
	return wl
}

// IsAllowed checks if an IP is whitelisted
func (wl *IPWhitelist) IsAllowed(ip string) bool {
	if ip == "127.0.0.1" || ip == "::1" {
		return true
	}
	if len(wl.ips) == 0 {
		return true
	}

	ipOnly, _, err := net.SplitHostPort(ip)
	if err != nil {
		ipOnly = ip
	}
	return wl.ips[ipOnly]
}

// IPWhitelistMiddleware enforces IP whitelisting
func IPWhitelistMiddleware(whitelist *IPWhitelist, sl *SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !whitelist.IsAllowed(ip) {
			sl.LogDenied(ip, "address not whitelisted")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}

// SecurityLogger logs security events
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger writing to logger
func NewSecurityLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "security").Logger()}
}

// LogFailedAuth logs failed authentication attempts
func (sl *SecurityLogger) LogFailedAuth(ip string, reason string) {
	sl.logger.Warn().Str("ip", ip).Str("reason", reason).Msg("failed authentication")
}

// LogTokenIssued logs a successful login
func (sl *SecurityLogger) LogTokenIssued(ip string, username string) {
	sl.logger.Info().Str("ip", ip).Str("user", username).Msg("session token issued")
}

// LogLogout logs an explicit session revocation
func (sl *SecurityLogger) LogLogout(ip string, username string) {
	sl.logger.Info().Str("ip", ip).Str("user", username).Msg("session revoked")
}

// LogWebSocketConnected logs successful WebSocket connections
func (sl *SecurityLogger) LogWebSocketConnected(ip string, username string) {
	sl.logger.Info().Str("ip", ip).Str("user", username).Msg("websocket connected")
}

// LogWebSocketDisconnected logs WebSocket disconnections
func (sl *SecurityLogger) LogWebSocketDisconnected(ip string, clientID string) {
	sl.logger.Info().Str("ip", ip).Str("client", clientID).Msg("websocket disconnected")
}

// LogRateLimited logs a request refused by a rate limiter
func (sl *SecurityLogger) LogRateLimited(ip string, scope string) {
	sl.logger.Warn().Str("ip", ip).Str("scope", scope).Msg("rate limit exceeded")
}

// LogDenied logs a request refused before reaching a handler
func (sl *SecurityLogger) LogDenied(ip string, reason string) {
	sl.logger.Warn().Str("ip", ip).Str("reason", reason).Msg("access denied")
}

// LogPrivileged records a host-changing operation performed by an operator
func (sl *SecurityLogger) LogPrivileged(ip, username, action, target string) {
	sl.logger.Info().Str("ip", ip).Str("user", username).Str("action", action).Str("target", target).Msg("privileged operation")
}

// InputValidator validates and sanitizes user input
type InputValidator struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateToken checks if token format is valid
func (iv *InputValidator) ValidateToken(token string) bool {
	// JWT tokens are in format: header.payload.signature
	if len(token) < 20 || len(token) > 4096 {
		return false
	}
	return strings.Count(token, ".") == 2
}

// ValidateUsername checks if an operator or account name is safe to log and look up
func (iv *InputValidator) ValidateUsername(name string) bool {
	if len(name) < 1 || len(name) > 64 {
		return false
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.') {
			return false
		}
	}
	return true
}
