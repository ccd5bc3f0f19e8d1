package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/coverage-api/internal/service"
)

func serveDirect(handle gin.HandlerFunc, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, target, nil)
	handle(c)
	return w
}

func TestMetricsHandlerReady(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	broken := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	handler := NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy})
	w := serveDirect(handler.Ready, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy, "redis": broken})
	w = serveDirect(handler.Ready, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","failed":{"redis":"connection refused"}}`, w.Body.String())
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	w := serveDirect(NewMetricsHandler(nil, nil).Prometheus, "/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	metrics := service.NewMetricsService()
	metrics.RecordAccept("won")
	w = serveDirect(NewMetricsHandler(metrics, nil).Prometheus, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# TYPE")
}
