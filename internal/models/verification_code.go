package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCode is a single-use email verification code bound to a user.
type VerificationCode struct {
	Code      string    `json:"code" db:"code"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
