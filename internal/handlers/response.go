package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/middlewares"
)

// ErrorResponse represents an error response
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: Internal server error
	Message string `json:"message"`
}

const (
	msgInternal           = "Internal server error"
	msgInvalidBody        = "Invalid request body"
	msgInvalidUserID      = "Invalid user id"
	msgUserNotFound       = "User not found"
	msgDuplicateEmail     = "Email already exists"
	msgCodeNotFound       = "Code not found"
	msgInvalidCredentials = "Invalid credentials"
	msgNotVerified        = "This user is not verified"
	msgUnauthorized       = "Unauthorized"
)

var validate = newValidator()

// newValidator reports field names as they appear in JSON.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns validator errors into a short sorted field list.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return msgInvalidBody
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	sort.Strings(fields)
	return "Invalid fields: " + strings.Join(fields, ", ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "error", err)
	}
}

// logInternal logs an unexpected error together with the request id.
func logInternal(r *http.Request, err error) {
	logger.Log.Errorw("internal server error",
		"request_id", middlewares.GetRequestID(r.Context()),
		"error", err,
	)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

// userIDParam parses the {id} path parameter.
func userIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
