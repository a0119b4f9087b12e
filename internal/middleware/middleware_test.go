package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestRequestIDPropagates(t *testing.T) {
	r := newRouter()
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestRequirePermission(t *testing.T) {
	r := newRouter()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-Principal") == "reader" {
			c.Set(ContextPrincipal, &service.Principal{UserID: "u1", CanRead: true})
		}
		c.Next()
	})
	r.POST("/things", RequirePermission(service.PermissionWrite), func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/things", RequirePermission(service.PermissionRead), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/things", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.CodeUnauthorized, decodeError(t, w).Code)

	req := httptest.NewRequest("POST", "/things", nil)
	req.Header.Set("X-Test-Principal", "reader")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, service.CodeForbidden, body.Code)
	assert.NotEmpty(t, body.RequestID)

	req = httptest.NewRequest("GET", "/things", nil)
	req.Header.Set("X-Test-Principal", "reader")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteErrorMapsUnknownErrorsToInternal(t *testing.T) {
	r := newRouter()
	r.GET("/boom", func(c *gin.Context) { WriteError(c, errors.New("db exploded")) })
	r.GET("/missing", func(c *gin.Context) { WriteError(c, service.NotFoundError("order")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, service.CodeInternal, body.Code)
	assert.NotContains(t, body.Message, "db exploded")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.CodeNotFound, decodeError(t, w).Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter()
	r.Use(CORS())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Team-ID")
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	r := newRouter()
	r.Use(Metrics(m))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	assert.Equal(t, 3.0, promtest.ToFloat64(m.Requests.WithLabelValues("GET", "/orders/:id", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Requests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.InFlight))
}
