// Package auth provides account and token authentication for EcoTrail.
package auth

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// User represents an account in the system.
type User struct {
	ID           string    `json:"userId"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt hash, never exposed in API
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Credentials is the request body for signup and login.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=64,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Normalize trims the username. Usernames are case-insensitive.
func (c *Credentials) Normalize() {
	c.Username = strings.ToLower(strings.TrimSpace(c.Username))
}

// Validate validates the credentials.
func (c *Credentials) Validate() []FieldError {
	return validateStruct(c)
}

// UpdatePasswordRequest is the request body for changing a password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

// Validate validates the password change request.
func (r *UpdatePasswordRequest) Validate() []FieldError {
	return validateStruct(r)
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError is returned by the service when a request fails validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return "validation failed: " + e.Fields[0].Message
}

// TokenResponse represents the response after successful authentication.
type TokenResponse struct {
	// AccessToken is the JWT access token for API authentication.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the access token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// RefreshToken is the opaque token used to obtain new access tokens.
	RefreshToken string `json:"refreshToken,omitempty"`

	// User contains the authenticated user's information.
	User *User `json:"user"`
}

// RefreshTokenRequest represents the request to refresh an access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Validate validates the refresh token request.
func (r *RefreshTokenRequest) Validate() []FieldError {
	return validateStruct(r)
}

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	validate        = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("auth: registering username validator: " + err.Error())
	}
	// Report JSON names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct's validate tags and converts failures to FieldErrors.
func validateStruct(s any) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error(), Code: "INVALID"}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fieldCode(fe.Tag()),
		})
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "username":
		return fe.Field() + " may only contain letters, digits, '.', '_' and '-'"
	case "nefield":
		return fe.Field() + " must differ from the current password"
	default:
		return fe.Field() + " is invalid"
	}
}

func fieldCode(tag string) string {
	switch tag {
	case "required":
		return "REQUIRED"
	case "min":
		return "TOO_SHORT"
	case "max":
		return "TOO_LONG"
	default:
		return "INVALID"
	}
}
