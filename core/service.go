package core

import (
	"context"
	"errors"
)

// AccountStore is the read side the authenticator needs.
type AccountStore interface {
	FindByMail(ctx context.Context, mail string) (*Account, error)
}

// TokenGenerator mints opaque session tokens.
type TokenGenerator interface {
	NewToken() (string, error)
}

// Authenticator validates credentials against an AccountStore and issues a token.
// It holds no mutable state; one instance serves all requests.
type Authenticator struct {
	accounts  AccountStore
	passwords PasswordVerifier
	tokens    TokenGenerator
}

func NewAuthenticator(accounts AccountStore, passwords PasswordVerifier, tokens TokenGenerator) *Authenticator {
	return &Authenticator{accounts: accounts, passwords: passwords, tokens: tokens}
}

// Authenticate returns a SessionDescriptor only when validation, lookup and
// password verification all succeed. Failures are *ValidationError, *AuthError
// or *InfrastructureError.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (SessionDescriptor, error) {
	if err := ValidateCredentials(Credentials{Email: email, Password: password}); err != nil {
		return SessionDescriptor{}, err
	}

	acc, err := a.accounts.FindByMail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return SessionDescriptor{}, &AuthError{Reason: ReasonUnknownEmail}
		}
		return SessionDescriptor{}, &InfrastructureError{Op: "account lookup", Err: err}
	}
	if acc == nil {
		return SessionDescriptor{}, &AuthError{Reason: ReasonUnknownEmail}
	}

	if err := a.passwords.Verify(acc.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return SessionDescriptor{}, &AuthError{Reason: ReasonWrongPassword}
		}
		return SessionDescriptor{}, &InfrastructureError{Op: "password verification", Err: err}
	}

	token, err := a.tokens.NewToken()
	if err != nil {
		return SessionDescriptor{}, &InfrastructureError{Op: "token generation", Err: err}
	}

	return SessionDescriptor{
		ID:         acc.ID,
		Name:       acc.Name,
		Email:      acc.Mail,
		IsLoggedIn: true,
		Token:      token,
	}, nil
}
