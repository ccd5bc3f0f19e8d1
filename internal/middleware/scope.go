package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coverage-api/internal/models"
	appErrors "github.com/noah-isme/coverage-api/pkg/errors"
	"github.com/noah-isme/coverage-api/pkg/logger"
	"github.com/noah-isme/coverage-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing verified token claims.
	ContextUserKey = "currentUser"
	// ContextScopeKey is the gin context key storing the caller's RequestScope.
	ContextScopeKey = "requestScope"

	districtCookie = "district_code"
	schoolCookie   = "school_code"
	districtHeader = "X-District-Code"
	schoolHeader   = "X-School-Code"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Scope requires a bearer token plus district and school codes, and attaches the
// resulting RequestScope for handlers.
func Scope(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		district := scopeValue(c, districtCookie, districtHeader)
		school := scopeValue(c, schoolCookie, schoolHeader)
		if district == "" || school == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "district and school scope required"))
			c.Abort()
			return
		}

		scope := &models.RequestScope{
			UserID:       claims.UserID,
			Role:         claims.Role,
			DistrictCode: district,
			SchoolCode:   school,
		}
		c.Set(ContextUserKey, claims)
		c.Set(ContextScopeKey, scope)
		c.Set(logger.ActorKey, scope.UserID)
		c.Set(logger.DistrictKey, district)
		c.Set(logger.SchoolKey, school)
		c.Next()
	}
}

// ScopeFrom returns the RequestScope attached by Scope, if any.
func ScopeFrom(c *gin.Context) (*models.RequestScope, bool) {
	value, ok := c.Get(ContextScopeKey)
	if !ok {
		return nil, false
	}
	scope, ok := value.(*models.RequestScope)
	return scope, ok && scope != nil
}

// Cookies win over headers.
func scopeValue(c *gin.Context, cookie, header string) string {
	if v, err := c.Cookie(cookie); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.GetHeader(header))
}
