package models

import "time"

// Role is the access level of a user
type Role int

// Role constants
const (
	RoleStudent Role = 1
	RoleAdmin   Role = 2
)

// User represents a registered user
type User struct {
	ID            int       `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"` // never serialized; empty for OAuth-only users
	Role          Role      `json:"role"`
	Avatar        string    `json:"avatar,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	OAuthProvider string    `json:"oauthProvider,omitempty"`
	OAuthSubject  string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasPassword reports whether the user can log in with credentials
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ProfileResponse is the current user's profile with the ids of courses they own
type ProfileResponse struct {
	User
	EnrolledCourseIDs []int `json:"enrolledCourseIds"`
}

// UserListItem represents a user row in the admin console
type UserListItem struct {
	ID              int       `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	Role            Role      `json:"role"`
	EnrollmentCount int       `json:"enrollmentCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// UserDetailResponse is the admin view of a single user
type UserDetailResponse struct {
	User
	Enrollments []EnrollmentListItem `json:"enrollments"`
	Payments    []Payment            `json:"payments"`
}

// UserFilter narrows the admin user list
type UserFilter struct {
	Search string
	Role   Role
	Page   int
	Count  int
}

// RegisterRequest represents a credentials registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents a login with email or username
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token when it is not sent as a cookie
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse holds the issued token pair
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UpdateProfileRequest represents a partial profile update
type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=50,alphanum"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// UpdateRoleRequest represents an admin role change
type UpdateRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=1 2"`
}
