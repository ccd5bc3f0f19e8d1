package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
	"github.com/noah-isme/coverage-api/pkg/response"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*models.JWTClaims, error) {
	return s.claims, s.err
}

type memAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	err     error
}

func (m *memAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, log)
	return m.err
}

type reported struct {
	level   string
	actorID string
	err     error
	extras  map[string]interface{}
}

type stubReporter struct {
	items []reported
}

func (s *stubReporter) Error(_ *http.Request, actorID string, err error, extras map[string]interface{}) {
	s.items = append(s.items, reported{level: "error", actorID: actorID, err: err, extras: extras})
}

func (s *stubReporter) Critical(_ *http.Request, actorID string, err error, extras map[string]interface{}) {
	s.items = append(s.items, reported{level: "critical", actorID: actorID, err: err, extras: extras})
}

type observed struct {
	method string
	path   string
	status int
}

type stubObserver struct {
	calls []observed
}

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.calls = append(s.calls, observed{method: method, path: path, status: status})
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func scopedRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer token")
	req.AddCookie(&http.Cookie{Name: districtCookie, Value: "D1"})
	req.AddCookie(&http.Cookie{Name: schoolCookie, Value: "SCH-1"})
	return req
}

func TestScopeAttachesRequestScope(t *testing.T) {
	r := newEngine()
	r.Use(Scope(stubValidator{claims: adminClaims()}))
	var got *models.RequestScope
	r.GET("/", func(c *gin.Context) {
		got, _ = ScopeFrom(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, scopedRequest(http.MethodGet, "/"))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "admin-1", got.UserID)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "D1", got.DistrictCode)
	assert.Equal(t, "SCH-1", got.SchoolCode)
}

func TestScopeFallsBackToHeaders(t *testing.T) {
	r := newEngine()
	r.Use(Scope(stubValidator{claims: adminClaims()}))
	var got *models.RequestScope
	r.GET("/", func(c *gin.Context) {
		got, _ = ScopeFrom(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set(districtHeader, "D2")
	req.Header.Set(schoolHeader, "SCH-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "D2", got.DistrictCode)
	assert.Equal(t, "SCH-9", got.SchoolCode)
}

func TestScopeRejectsMissingCredentials(t *testing.T) {
	cases := map[string]struct {
		validator stubValidator
		build     func() *http.Request
	}{
		"no token": {
			validator: stubValidator{claims: adminClaims()},
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set(districtHeader, "D1")
				req.Header.Set(schoolHeader, "SCH-1")
				return req
			},
		},
		"malformed header": {
			validator: stubValidator{claims: adminClaims()},
			build: func() *http.Request {
				req := scopedRequest(http.MethodGet, "/")
				req.Header.Set("Authorization", "Token abc")
				return req
			},
		},
		"invalid token": {
			validator: stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")},
			build:     func() *http.Request { return scopedRequest(http.MethodGet, "/") },
		},
		"no scope": {
			validator: stubValidator{claims: adminClaims()},
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set("Authorization", "Bearer token")
				req.Header.Set(districtHeader, "D1")
				return req
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newEngine()
			r.Use(Scope(tc.validator))
			called := false
			r.GET("/", func(c *gin.Context) { called = true })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tc.build())

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)
			assert.Contains(t, w.Body.String(), appErrors.ErrUnauthorized.Code)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	r := newEngine()
	r.Use(Scope(stubValidator{claims: &models.JWTClaims{UserID: "sub-1", Role: models.RoleSubstitute}}))
	r.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/staff", RequireRoles(models.RoleAdmin, models.RoleSubstitute), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/staff/:id", RBAC(string(models.RoleAdmin), "SELF"), func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]int{
		"/admin":       http.StatusForbidden,
		"/staff":       http.StatusOK,
		"/staff/sub-1": http.StatusOK,
		"/staff/sub-2": http.StatusForbidden,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, scopedRequest(http.MethodGet, path))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestRequireRolesWithoutScope(t *testing.T) {
	r := newEngine()
	r.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditRecordsFailures(t *testing.T) {
	repo := &memAudit{}
	r := newEngine()
	r.Use(Scope(stubValidator{claims: adminClaims()}))
	r.POST("/openings/:id/confirm", Audit(repo, nil, models.AuditActionOpeningConfirm, "coverage_opening"), func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidState, "opening is open; expected requested"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, scopedRequest(http.MethodPost, "/openings/op-1/confirm"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, models.AuditActionOpeningConfirm, entry.Action)
	assert.Equal(t, "coverage_opening", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "op-1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"status":422`)
	assert.Contains(t, string(entry.NewValues), `"school_code":"SCH-1"`)
}

func TestAuditWriteFailureDoesNotAffectResponse(t *testing.T) {
	repo := &memAudit{err: errors.New("db down")}
	r := newEngine()
	r.POST("/age", Audit(repo, nil, models.AuditActionRosterAge, "staff"), func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{"updated": 3}, nil)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/age", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.entries, 1)
	assert.Nil(t, repo.entries[0].UserID)
	assert.Nil(t, repo.entries[0].ResourceID)
}

func TestRecoveryReportsPanics(t *testing.T) {
	reporter := &stubReporter{}
	r := newEngine()
	r.Use(Recovery(reporter, nil))
	r.Use(Scope(stubValidator{claims: adminClaims()}))
	r.GET("/boom", func(c *gin.Context) { panic("nil map") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, scopedRequest(http.MethodGet, "/boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrInternal.Code)
	require.Len(t, reporter.items, 1)
	assert.Equal(t, "critical", reporter.items[0].level)
	assert.Equal(t, "admin-1", reporter.items[0].actorID)
	assert.EqualError(t, reporter.items[0].err, "panic: nil map")
	assert.Equal(t, "/boom", reporter.items[0].extras["route"])
}

func TestReportServerErrorsOnlyFor5xx(t *testing.T) {
	reporter := &stubReporter{}
	r := newEngine()
	r.Use(ReportServerErrors(reporter))
	r.GET("/fail", func(c *gin.Context) { response.Error(c, errors.New("connection reset")) })
	r.GET("/missing", func(c *gin.Context) { response.Error(c, appErrors.ErrNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, reporter.items)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, reporter.items, 1)
	assert.Equal(t, "error", reporter.items[0].level)
	assert.EqualError(t, reporter.items[0].err, "connection reset")
	assert.Equal(t, http.StatusInternalServerError, reporter.items[0].extras["status"])
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &stubObserver{}
	r := newEngine()
	r.Use(Metrics(observer))
	r.GET("/openings/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/openings/a", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, observer.calls, 2)
	assert.Equal(t, observed{method: http.MethodGet, path: "/openings/:id", status: http.StatusOK}, observer.calls[0])
	assert.Equal(t, observed{method: http.MethodGet, path: "unmatched", status: http.StatusNotFound}, observer.calls[1])
}
