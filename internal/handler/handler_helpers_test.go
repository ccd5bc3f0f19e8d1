package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coverage-api/internal/middleware"
	"github.com/noah-isme/coverage-api/internal/models"
)

const (
	testAdminID = "99999999-9999-4999-8999-999999999999"
	testSubID   = "22222222-2222-4222-8222-222222222222"
	testJobID   = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
)

func adminScope() *models.RequestScope {
	return &models.RequestScope{UserID: testAdminID, Role: models.RoleAdmin, DistrictCode: "D1", SchoolCode: "SCH-1"}
}

func subScope() *models.RequestScope {
	return &models.RequestScope{UserID: testSubID, Role: models.RoleSubstitute, DistrictCode: "D1", SchoolCode: "SCH-1"}
}

func newTestContext(t *testing.T, method, target string, body interface{}, scope *models.RequestScope) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if scope != nil {
		c.Set(middleware.ContextScopeKey, scope)
	}
	return c, w
}

func param(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}

type apiError struct {
	Code      string `json:"error_kind"`
	Retryable bool   `json:"retryable"`
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Error      *apiError          `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
