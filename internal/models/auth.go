package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the identity provider.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleTeacher    UserRole = "teacher"
	RoleSubstitute UserRole = "substitute"
)

// JWTClaims represents the bearer token payload. Tokens are issued elsewhere and only verified here.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// RequestScope is the pre-validated caller context attached to every request.
type RequestScope struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	DistrictCode string   `json:"district_code"`
	SchoolCode   string   `json:"school_code"`
}

// IsAdmin reports whether the caller holds the admin role.
func (s *RequestScope) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// ActsFor reports whether the caller may act on behalf of the given staff member.
func (s *RequestScope) ActsFor(staffID string) bool {
	if s == nil {
		return false
	}
	return s.IsAdmin() || s.UserID == staffID
}
