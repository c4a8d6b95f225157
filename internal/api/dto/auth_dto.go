package dto

import "github.com/spec-kit/notes-service/internal/domain"

// CredentialsRequest payload for register and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user. The password hash never leaves the server.
type UserResponse struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Success bool         `json:"success"`
	User    UserResponse `json:"user"`
}

// MessageResponse acknowledges an action.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewUserResponse maps a user record.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{ID: user.ID, Username: user.Username, Role: user.Role}
}
