package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coverage-api/internal/dto"
	"github.com/noah-isme/coverage-api/internal/middleware"
	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
)

func scopeFromContext(c *gin.Context) *models.RequestScope {
	scope, ok := middleware.ScopeFrom(c)
	if !ok {
		return nil
	}
	return scope
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

// queryDate parses an optional YYYY-MM-DD query value as a UTC calendar date.
func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+key+" date")
	}
	return &t, nil
}

func bindError(err error, what string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+what+" payload")
}
