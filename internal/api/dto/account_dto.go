package dto

import "time"

// SignupRequest payload for new accounts. Bounds follow the account schema:
// display names are 4..30 characters and passwords at least 8.
type SignupRequest struct {
	FullName string `json:"fullName" validate:"required,min=4,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries the optional profile fields; absent fields are
// left unchanged.
type UpdateProfileRequest struct {
	FullName string `json:"fullName" validate:"omitempty,min=2,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// ChangePasswordRequest payload for authenticated password rotation.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,password_strength"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
