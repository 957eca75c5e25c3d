package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders returns Gin middleware that sets common security response
// headers. Successful reads may be cached by clients for maxAge, since
// summaries only change when a product is refreshed; everything else is
// marked no-store.
func SecurityHeaders(maxAge time.Duration) gin.HandlerFunc {
	readCache := "no-store"
	if maxAge > 0 {
		readCache = "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	}

	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains")

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Header("Cache-Control", readCache)
		} else {
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}
