package handlers

import (
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-users/internal/middlewares"
	"github.com/sbilibin2017/gw-users/internal/services"
)

// NewListUsersHandler returns an HTTP handler listing all users.
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} models.User "Users"
// @Failure 401 "Unauthorized"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /users [get]
// @Security BearerAuth
func NewListUsersHandler(svc UserLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.List(r.Context())
		if err != nil {
			logInternal(r, err)
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		writeJSON(w, http.StatusOK, users)
	}
}

// NewGetUserHandler returns an HTTP handler fetching a user by id.
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User "User"
// @Failure 400 {object} handlers.ErrorResponse "Invalid user id"
// @Failure 401 "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /users/{id} [get]
// @Security BearerAuth
func NewGetUserHandler(svc UserGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidUserID)
			return
		}

		user, err := svc.Get(r.Context(), userID)
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

// NewMeHandler returns an HTTP handler echoing the authenticated user.
// @Summary Current user
// @Description Returns the user embedded in the bearer token without reading storage
// @Tags users
// @Produce json
// @Success 200 {object} models.User "Current user"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Router /users/me [get]
// @Security BearerAuth
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middlewares.GetUserFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}
