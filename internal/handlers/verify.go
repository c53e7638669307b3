package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sbilibin2017/gw-users/internal/services"
)

// NewVerifyEmailHandler returns an HTTP handler consuming an email verification code.
// @Summary Verify email
// @Description Marks the owner of the code as verified. A code can be used once.
// @Tags users
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} models.User "Verified user"
// @Failure 401 {object} handlers.ErrorResponse "Code not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /users/verify/{code} [get]
func NewVerifyEmailHandler(svc EmailVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		user, err := svc.VerifyEmail(r.Context(), code)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrCodeNotFound):
				writeError(w, http.StatusUnauthorized, msgCodeNotFound)
			default:
				logInternal(r, err)
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}
