package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/auth"
)

// maxJSONBody caps JSON request bodies. Uploads have their own limit.
const maxJSONBody = 1 << 20

// validate checks the `validate:"..."` tags of request structs. Field names in
// errors are the JSON names the client sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the request body into dst and validates it. Every failure
// is a 400 carrying the offending field when known.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "Request body is required")
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("", "Request body is too large")
		default:
			return apperror.ValidationFailed("", "Invalid JSON body")
		}
	}
	return validateStruct(dst)
}

// validateStruct turns the first validator failure into a readable message.
func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("", "Invalid request")
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "email":
		msg = "Invalid email address"
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url", "http_url":
		msg = field + " must be a valid URL"
	default:
		msg = field + " is invalid"
	}
	return apperror.ValidationFailed(field, msg)
}

// callerID returns the authenticated user id. Routes behind RequireAuth
// always have one; OptionalAuth routes get "" for anonymous callers.
func callerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// pathParam is chi.URLParam with surrounding whitespace removed.
func pathParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

// queryInt reads a non-negative integer query parameter, returning 0 when it
// is absent or malformed.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
