package auth

import "github.com/pulseapp/pulse/internal/models"

// ServiceInterface defines the contract for authentication operations.
// This enables mocking for unit tests without requiring a real database.
type ServiceInterface interface {
	RegisterNativeUser(req RegisterRequest) (*AuthResponse, error)
	LoginNativeUser(req LoginRequest) (*AuthResponse, error)

	FindUserByEmail(email string) (*models.User, error)

	ValidateToken(tokenString string) (*models.User, error)
}

// TokenVerifier is the narrow contract the real-time layer depends on:
// validate a credential token and resolve the user identity behind it.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*models.User, error)
}

// Ensure Service implements both contracts
var (
	_ ServiceInterface = (*Service)(nil)
	_ TokenVerifier    = (*Service)(nil)
)
