package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	maxJSONBodyBytes = 1 << 20

	// bcrypt only hashes the first 72 bytes and rejects anything longer.
	maxPasswordBytes = 72
)

type signUpRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,max=255,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
	// Role "admin" is only honoured when the service allows admin sign-up.
	Role     Role   `json:"role" validate:"omitempty,oneof=user admin"`
}

func (r *signUpRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Role = Role(strings.TrimSpace(string(r.Role)))
}

func (r *signUpRequest) input() SignUpInput {
	role := r.Role
	if role == "" {
		role = RoleUser
	}
	return SignUpInput{Name: r.Name, Email: r.Email, Password: r.Password, Role: role}
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *signInRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Details
}

func passwordTooLongError() *ValidationError {
	return &ValidationError{Details: fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

type normalizer interface {
	normalize()
}

// decodeAndValidate reads a JSON body into dst, normalizes it and runs the
// struct tag rules. Schema failures come back as *ValidationError.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst normalizer) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &ValidationError{Details: describeDecodeError(err)}
	}

	dst.normalize()

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return &ValidationError{Details: formatFieldErrors(fieldErrs)}
		}
		return fmt.Errorf("validate request: %w", err)
	}

	return nil
}

func describeDecodeError(err error) string {
	var maxBytesErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxBytesErr):
		return "request body is too large"
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind())
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return strings.TrimPrefix(err.Error(), "json: ") + " is not allowed"
	default:
		return "invalid json body"
	}
}

func formatFieldErrors(fieldErrs validator.ValidationErrors) string {
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return strings.Join(messages, ", ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fe.Field() + " is invalid"
	}
}
