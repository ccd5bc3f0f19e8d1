package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
	"github.com/noah-isme/coverage-api/pkg/logger"
	"github.com/noah-isme/coverage-api/pkg/response"
)

type errorReporter interface {
	Error(req *http.Request, actorID string, err error, extras map[string]interface{})
	Critical(req *http.Request, actorID string, err error, extras map[string]interface{})
}

// Recovery turns panics into a 500 envelope and reports them.
func Recovery(reporter errorReporter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", recovered)
		}
		log.Error("panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"))
		if reporter != nil {
			reporter.Critical(c.Request, c.GetString(logger.ActorKey), err, requestExtras(c))
		}
		response.Error(c, appErrors.ErrInternal)
		c.Abort()
	})
}

// ReportServerErrors forwards the last handler error of any 5xx response.
func ReportServerErrors(reporter errorReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if reporter == nil || c.Writer.Status() < http.StatusInternalServerError || len(c.Errors) == 0 {
			return
		}
		extras := requestExtras(c)
		extras["status"] = c.Writer.Status()
		reporter.Error(c.Request, c.GetString(logger.ActorKey), c.Errors.Last().Err, extras)
	}
}

func requestExtras(c *gin.Context) map[string]interface{} {
	extras := map[string]interface{}{"route": c.FullPath()}
	if v := c.GetString(logger.DistrictKey); v != "" {
		extras["district_code"] = v
	}
	if v := c.GetString(logger.SchoolKey); v != "" {
		extras["school_code"] = v
	}
	return extras
}
