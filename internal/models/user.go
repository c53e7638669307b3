package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmailAlreadyExists is returned by storage when the email unique constraint is violated.
var ErrEmailAlreadyExists = errors.New("email already exists")

// User represents a user record in the database
type User struct {
	UserID       uuid.UUID `json:"id" db:"user_id"`                 // Primary key
	Email        string    `json:"email" db:"email"`                // Unique email, case-sensitive
	PasswordHash string    `json:"-" db:"password_hash"`            // Bcrypt hash, never serialized
	FirstName    string    `json:"firstName" db:"first_name"`       // First name
	LastName     string    `json:"lastName" db:"last_name"`         // Last name
	Country      string    `json:"country" db:"country"`            // Country
	Image        *string   `json:"image" db:"image"`                // Optional image reference
	IsVerified   bool      `json:"isVerified" db:"is_verified"`     // Email verification flag
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`       // Creation timestamp
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`       // Last update timestamp
}

// UserProfileUpdate holds the mutable profile fields. Nil fields keep the stored value.
type UserProfileUpdate struct {
	FirstName *string
	LastName  *string
	Country   *string
	Image     *string
}
