package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-users/internal/models"
	"github.com/sbilibin2017/gw-users/internal/services"
)

// UpdateUserRequest represents the JSON body for a profile update.
// Omitted fields keep their stored value. Email and password cannot be changed.
// swagger:model UpdateUserRequest
type UpdateUserRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Country   *string `json:"country,omitempty" validate:"omitempty,min=1,max=100"`
	Image     *string `json:"image,omitempty"`
}

// NewUpdateUserHandler returns an HTTP handler updating profile fields.
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body handlers.UpdateUserRequest true "Profile fields"
// @Success 200 {object} models.User "Updated user"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /users/{id} [put]
// @Security BearerAuth
func NewUpdateUserHandler(svc UserUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidUserID)
			return
		}

		var req UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}

		user, err := svc.Update(r.Context(), userID, models.UserProfileUpdate{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Country:   req.Country,
			Image:     req.Image,
		})
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				writeError(w, http.StatusNotFound, msgUserNotFound)
			default:
				logInternal(r, err)
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// NewDeleteUserHandler returns an HTTP handler removing a user.
// @Summary Delete user
// @Tags users
// @Param id path string true "User ID"
// @Success 204 "Deleted"
// @Failure 400 {object} handlers.ErrorResponse "Invalid user id"
// @Failure 401 "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /users/{id} [delete]
// @Security BearerAuth
func NewDeleteUserHandler(svc UserDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidUserID)
			return
		}

		if err := svc.Delete(r.Context(), userID); err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				writeError(w, http.StatusNotFound, msgUserNotFound)
			default:
				logInternal(r, err)
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
