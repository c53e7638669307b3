package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-users/internal/models"
	"github.com/sbilibin2017/gw-users/internal/services"
)

// LoginRequest represents the JSON body for user login
// swagger:model LoginRequest
type LoginRequest struct {
	// Email
	// required: true
	// default: a@x.com
	Email string `json:"email" validate:"required"`

	// Password
	// required: true
	// default: secret1
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login response
// swagger:model LoginResponse
type LoginResponse struct {
	// Authenticated user
	User *models.User `json:"user"`

	// JWT token
	// default: JWT_TOKEN
	Token string `json:"token"`
}

// NewLoginHandler returns an HTTP handler for user login.
// @Summary User login
// @Description Authenticate a verified user and return the user with a JWT token valid for one day
// @Tags users
// @Accept json
// @Produce json
// @Param request body handlers.LoginRequest true "Login Request"
// @Success 201 {object} handlers.LoginResponse "User and JWT token"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request body"
// @Failure 401 {object} handlers.ErrorResponse "Invalid credentials or user not verified"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /users/login [post]
func NewLoginHandler(svc Loginer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}

		user, token, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInvalidCredentials):
				writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
			case errors.Is(err, services.ErrNotVerified):
				writeError(w, http.StatusUnauthorized, msgNotVerified)
			default:
				logInternal(r, err)
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		writeJSON(w, http.StatusCreated, LoginResponse{User: user, Token: token})
	}
}
