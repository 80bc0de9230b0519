package models

import "github.com/golang-jwt/jwt/v5"

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6,max=72"`
	FullName string   `json:"full_name" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=admin teacher parent"`
	Phone    *string  `json:"phone"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse returns the issued bearer token and the user it belongs to.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        User   `json:"user"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// JWTClaims represents the JWT payload for access tokens. The user id is
// carried in the registered subject claim.
type JWTClaims struct {
	UserID   string   `json:"-"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller is an administrator.
func (c *JWTClaims) IsAdmin() bool { return c != nil && c.Role == RoleAdmin }

// IsTeacher reports whether the caller is a teacher.
func (c *JWTClaims) IsTeacher() bool { return c != nil && c.Role == RoleTeacher }

// IsParent reports whether the caller is a parent.
func (c *JWTClaims) IsParent() bool { return c != nil && c.Role == RoleParent }
