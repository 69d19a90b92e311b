package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
)

// initialPasswordLength stays inside the login password bounds.
const initialPasswordLength = 20

// BootstrapAccount creates an initial account when the store is empty.
// It is idempotent: if any account exists, it does nothing.
func BootstrapAccount(ctx context.Context, repo AccountRepository, hasher PasswordHasher, cfg Config) error {
	if !cfg.BootstrapAccountEnabled {
		return nil
	}
	if cfg.BootstrapAccountMail == "" {
		return errors.New("bootstrap account mail is empty")
	}
	if cfg.InitialPasswordPath == "" {
		return errors.New("initial password path is empty")
	}

	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := generatePassword(initialPasswordLength)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	name := firstNonEmpty(cfg.BootstrapAccountName, "Administrator")
	if _, err := repo.Create(ctx, name, cfg.BootstrapAccountMail, hash); err != nil {
		return err
	}

	if err := os.WriteFile(cfg.InitialPasswordPath, []byte(password+"\n"), 0o600); err != nil {
		return err
	}
	slog.InfoContext(ctx, "initial account created", "mail", cfg.BootstrapAccountMail, "password_file", cfg.InitialPasswordPath)
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
