package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	engine := gin.New()
	engine.Use(m.Middleware())
	engine.GET("/tasks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/tasks/1", "/tasks/2", "/missing"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/tasks/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
}

func TestAuthRejected(t *testing.T) {
	m := New()
	m.AuthRejected("/sample/process", ReasonInvalidToken)
	m.AuthRejected("/sample/process", ReasonInvalidToken)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.authRejections.WithLabelValues("/sample/process", ReasonInvalidToken)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.AuthRejected("/train/process", ReasonMissingCredentials)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ayumerna_auth_rejections_total{reason="missing_credentials",route="/train/process"} 1`)
}
