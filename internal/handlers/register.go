package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/services"
)

// CreateUserRequest represents the JSON body for user registration
// swagger:model CreateUserRequest
type CreateUserRequest struct {
	// Email
	// required: true
	// default: a@x.com
	Email string `json:"email" validate:"required,email,max=255"`

	// Password
	// required: true
	// default: secret1
	Password string `json:"password" validate:"required,max=72"`

	// First name
	// required: true
	FirstName string `json:"firstName" validate:"required,max=100"`

	// Last name
	// required: true
	LastName string `json:"lastName" validate:"required,max=100"`

	// Country
	// required: true
	// default: US
	Country string `json:"country" validate:"required,max=100"`

	// Optional image reference
	Image *string `json:"image,omitempty"`

	// Base URL of the frontend, used to build the verification link
	// required: true
	// default: http://localhost:3000
	FrontBaseURL string `json:"frontBaseUrl" validate:"required,url"`
}

// NewCreateUserHandler returns an HTTP handler for user registration.
// @Summary Register a new user
// @Description Creates an unverified user and emails a verification link <frontBaseUrl>/auth/verify_email/<code>.
// @Tags users
// @Accept json
// @Produce json
// @Param request body handlers.CreateUserRequest true "User registration request"
// @Success 201 {object} models.User "Created user"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 409 {object} handlers.ErrorResponse "Email already exists"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /users [post]
func NewCreateUserHandler(svc UserCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Log.Warnw("invalid registration request", "error", err)
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}

		user, err := svc.Register(r.Context(), services.RegisterParams{
			Email:        req.Email,
			Password:     req.Password,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Country:      req.Country,
			Image:        req.Image,
			FrontBaseURL: req.FrontBaseURL,
		})
		if err != nil {
			switch {
			case errors.Is(err, services.ErrDuplicateEmail):
				writeError(w, http.StatusConflict, msgDuplicateEmail)
			default:
				logInternal(r, err)
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}
