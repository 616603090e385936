package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLocalhostOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tests := []struct {
		name       string
		allowed    []string
		remoteAddr string
		want       int
	}{
		{"loopback v4", nil, "127.0.0.1:5000", http.StatusOK},
		{"loopback v6", nil, "[::1]:5000", http.StatusOK},
		{"remote without whitelist", nil, "10.1.2.3:5000", http.StatusForbidden},
		{"exact match", []string{"10.1.2.3"}, "10.1.2.3:5000", http.StatusOK},
		{"cidr match", []string{"10.1.0.0/16"}, "10.1.2.3:5000", http.StatusOK},
		{"cidr miss", []string{"10.2.0.0/16"}, "10.1.2.3:5000", http.StatusForbidden},
		{"bad cidr ignored", []string{"10.1.0.0/99"}, "10.1.2.3:5000", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", NewLocalhostOnly(logger, tt.allowed).Restrict(), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.RemoteAddr = tt.remoteAddr
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
