package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-users/internal/models"
	"github.com/sbilibin2017/gw-users/internal/services"
)

//go:generate mockgen -source=users.go -destination=mock_handlers.go -package=handlers

// UserCreator registers new users.
type UserCreator interface {
	Register(ctx context.Context, p services.RegisterParams) (*models.User, error)
}

// EmailVerifier consumes verification codes.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, code string) (*models.User, error)
}

// Loginer authenticates users.
type Loginer interface {
	Login(ctx context.Context, email, password string) (*models.User, string, error)
}

// UserLister lists users.
type UserLister interface {
	List(ctx context.Context) ([]models.User, error)
}

// UserGetter fetches a single user.
type UserGetter interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// UserUpdater updates profile fields.
type UserUpdater interface {
	Update(ctx context.Context, userID uuid.UUID, upd models.UserProfileUpdate) (*models.User, error)
}

// UserDeleter removes users.
type UserDeleter interface {
	Delete(ctx context.Context, userID uuid.UUID) error
}
