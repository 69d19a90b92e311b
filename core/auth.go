package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Account is the persisted identity the authenticator reads.
type Account struct {
	ID           int64
	Name         string
	Mail         string
	PasswordHash string
	CreatedAt    time.Time
}

// Credentials are the transient login inputs. Never persist or log them.
type Credentials struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=8,max=20"`
}

// SessionDescriptor is returned to the client after a successful login.
type SessionDescriptor struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"isLoggedIn"`
	Token      string `json:"token"`
}

// AuthService defines authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (SessionDescriptor, error)
}

var (
	// ErrInvalidCredentials matches every *AuthError via errors.Is.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned by repositories when no account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when the mail is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrPasswordMismatch is returned by a PasswordVerifier on a wrong password.
	ErrPasswordMismatch = errors.New("password mismatch")
)

// Reason is a machine readable cause attached to validation and auth failures.
type Reason string

const (
	ReasonRequired      Reason = "required"
	ReasonInvalidFormat Reason = "invalid_format"
	ReasonTooShort      Reason = "too_short"
	ReasonTooLong       Reason = "too_long"

	ReasonUnknownEmail  Reason = "unknown_email"
	ReasonWrongPassword Reason = "wrong_password"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason Reason `json:"reason"`
}

// ValidationError collects every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+string(f.Reason))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Has reports whether field failed with reason.
func (e *ValidationError) Has(field string, reason Reason) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Reason == reason {
			return true
		}
	}
	return false
}

// AuthError is a credential mismatch. Reason is for logs and tests only;
// responses must not distinguish unknown_email from wrong_password.
type AuthError struct {
	Reason Reason
}

func (e *AuthError) Error() string {
	return "authentication failed: " + string(e.Reason)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// InfrastructureError hides a store or randomness failure behind a generic message.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("internal error during %s", e.Op)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}
