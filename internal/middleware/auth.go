package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/high001/webpanel/internal/services"
)

const (
	// SessionCookie carries the session token for browser-style clients
	SessionCookie = "webpanel_session"

	claimsKey = "session_claims"
)

// ExtractToken returns the session token from the Authorization header or the
// session cookie, in that order
func ExtractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// RequireSession rejects requests without a valid, unrevoked session token
func RequireSession(auth *services.AuthService, sl *SecurityLogger) gin.HandlerFunc {
	validator := NewInputValidator()
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !validator.ValidateToken(token) {
			sl.LogFailedAuth(c.ClientIP(), "malformed token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			sl.LogFailedAuth(c.ClientIP(), err.Error())
			msg := "Authentication required"
			if errors.Is(err, services.ErrSessionExpired) || errors.Is(err, services.ErrSessionRevoked) {
				msg = "Session expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns the session claims stored by RequireSession
func Claims(c *gin.Context) (*services.SessionClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*services.SessionClaims)
	return claims, ok
}

// Operator returns the username of the authenticated operator, or ""
func Operator(c *gin.Context) string {
	if claims, ok := Claims(c); ok {
		return claims.Username
	}
	return ""
}
