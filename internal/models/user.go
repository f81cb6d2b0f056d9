package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents caller roles understood by the API. Authentication
// itself lives in a separate identity service; this API only consumes the
// validated claims.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleModerator UserRole = "MODERATOR"
	RoleUser      UserRole = "USER"
)

// CanModerate reports whether the role may review submissions.
func (r UserRole) CanModerate() bool {
	return r == RoleAdmin || r == RoleModerator
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
