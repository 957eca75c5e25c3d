package api

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/middleware"
	"github.com/persistorai/explorer/internal/models"
)

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		if product := c.Param("name"); product != "" {
			fields["product"] = product
		}
		log.WithFields(fields).Info("request")
	}
}

// maxPaginationLimit caps the maximum number of items per page.
const maxPaginationLimit = 1000

// maxPaginationOffset caps the maximum offset for paginated queries.
const maxPaginationOffset = 100000

func parseInt(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}

	if v > maxPaginationLimit {
		return maxPaginationLimit
	}

	return v
}

func parseOffset(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}

	if v > maxPaginationOffset {
		return maxPaginationOffset
	}

	return v
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9-][A-Za-z0-9_.-]*$`)

// validateName checks a product name or region code path parameter.
func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s must not be empty", kind)
	}
	if len(name) > 255 {
		return fmt.Errorf("%s exceeds maximum length of 255", kind)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%s contains invalid characters", kind)
	}
	return nil
}

// parsePeriod reads the year, month and day query parameters. Missing
// parameters are zero.
func parsePeriod(c *gin.Context) (year, month, day int, err error) {
	for _, p := range []struct {
		key string
		dst *int
	}{{"year", &year}, {"month", &month}, {"day", &day}} {
		s := c.Query(p.key)
		if s == "" {
			continue
		}

		v, convErr := strconv.Atoi(s)
		if convErr != nil || v <= 0 {
			return 0, 0, 0, fmt.Errorf("%s must be a positive integer", p.key)
		}

		*p.dst = v
	}

	if err := models.ValidatePeriod(year, month, day); err != nil {
		return 0, 0, 0, err
	}

	return year, month, day, nil
}
