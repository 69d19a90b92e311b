package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegistrationInput is the sign-up payload.
type RegistrationInput struct {
	Name     string `form:"name" json:"name" validate:"required,max=100"`
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=8,max=20"`
}

// WelcomeEnqueuer schedules the welcome mail for a new account.
type WelcomeEnqueuer interface {
	EnqueueWelcome(ctx context.Context, job MailJob) error
}

// RegistrationService creates accounts and schedules the welcome mail.
type RegistrationService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	mail     WelcomeEnqueuer
}

func NewRegistrationService(accounts AccountRepository, hasher PasswordHasher, mail WelcomeEnqueuer) *RegistrationService {
	return &RegistrationService{accounts: accounts, hasher: hasher, mail: mail}
}

// Register validates the input, stores the account and enqueues a welcome
// mail. A failed enqueue is logged; the account is still created.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (*Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	exists, err := s.accounts.ExistsByMail(ctx, in.Email)
	if err != nil {
		return nil, &InfrastructureError{Op: "account lookup", Err: err}
	}
	if exists {
		return nil, ErrAccountExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, &ValidationError{Fields: []FieldError{{Field: "password", Reason: ReasonTooLong}}}
		}
		return nil, &InfrastructureError{Op: "password hashing", Err: err}
	}

	id, err := s.accounts.Create(ctx, in.Name, in.Email, hash)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, &InfrastructureError{Op: "account create", Err: err}
	}
	acc := &Account{ID: id, Name: in.Name, Mail: in.Email}

	if s.mail != nil {
		job := MailJob{ID: uuid.NewString(), AccountID: id, Name: in.Name, Email: in.Email}
		if err := s.mail.EnqueueWelcome(ctx, job); err != nil {
			slog.WarnContext(ctx, "enqueue welcome mail failed", "account_id", id, "error", err)
		}
	}
	return acc, nil
}
