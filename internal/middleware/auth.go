package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/security"
)

// authTimingFloor is the minimum response time for rejected admin requests,
// so response timing does not reveal how much of a token matched.
const authTimingFloor = 50 * time.Millisecond

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AdminToken returns Gin middleware guarding admin routes with a static
// bearer token. An empty token disables the routes entirely. Clients that
// repeatedly present a wrong token are locked out by guard, which may be nil.
func AdminToken(token string, guard *security.FailureGuard, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			respondError(c, http.StatusForbidden, "forbidden", "admin endpoints are disabled")
			return
		}

		client := c.ClientIP()
		if guard != nil && guard.IsBlocked(client) {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed attempts")
			return
		}

		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		got := ExtractBearerToken(c)
		if got == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			if guard != nil {
				guard.RecordFailure(client)
			}
			logAuthFailure(log, c)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid admin token")
			return
		}

		if guard != nil {
			guard.Reset(client)
		}

		c.Next()
	}
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a rejected admin request.
func logAuthFailure(log *logrus.Logger, c *gin.Context) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString(RequestIDKey),
	}).Warn("authentication failed: invalid admin token")
}
