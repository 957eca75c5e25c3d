package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/middleware"
)

func TestRequestID(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	const clientUUID = "5f0c4c4e-2b7a-4d0e-9d43-8d1f8f0b6a11"

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"none", "", false},
		{"uuid is kept", clientUUID, true},
		{"other ids are replaced", "abc-123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string

			r := gin.New()
			r.Use(middleware.RequestID(log))
			r.GET("/test", func(c *gin.Context) {
				seen = c.GetString(middleware.RequestIDKey)
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tt.header != "" {
				req.Header.Set(middleware.RequestIDHeader, tt.header)
			}
			r.ServeHTTP(w, req)

			got := w.Header().Get(middleware.RequestIDHeader)
			if got != seen {
				t.Errorf("header %q differs from context %q", got, seen)
			}

			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("request id %q is not a UUID", got)
			}

			if tt.keep != (got == tt.header) {
				t.Errorf("request id = %q, client sent %q", got, tt.header)
			}
		})
	}
}
