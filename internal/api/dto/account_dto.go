package dto

import (
	"time"

	"github.com/spec-kit/support-stream/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountResponse renders a public account view.
type AccountResponse struct {
	ID     string      `json:"id"`
	Handle string      `json:"handle"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
}
