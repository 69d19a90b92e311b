package core

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memAccounts is an in-memory AccountRepository matching mail case-insensitively.
type memAccounts struct {
	mu       sync.Mutex
	accounts []Account
	calls    int
	findErr  error
	nextID   int64
}

func (m *memAccounts) FindByMail(_ context.Context, mail string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i := range m.accounts {
		if equalFoldMail(m.accounts[i].Mail, mail) {
			acc := m.accounts[i]
			return &acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *memAccounts) FindByID(_ context.Context, id int64) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			acc := m.accounts[i]
			return &acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *memAccounts) Create(_ context.Context, name, mail, hash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if equalFoldMail(a.Mail, mail) {
			return 0, ErrAccountExists
		}
	}
	m.nextID++
	m.accounts = append(m.accounts, Account{ID: m.nextID, Name: name, Mail: mail, PasswordHash: hash, CreatedAt: time.Now()})
	return m.nextID, nil
}

func (m *memAccounts) ExistsByMail(_ context.Context, mail string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if equalFoldMail(a.Mail, mail) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccounts) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.accounts)), nil
}

func (m *memAccounts) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func equalFoldMail(a, b string) bool {
	return strings.EqualFold(a, b)
}

var testHasher = BcryptHasher{Cost: bcrypt.MinCost}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := testHasher.Hash(password)
	require.NoError(t, err)
	return h
}

func newTestAccounts(t *testing.T) *memAccounts {
	t.Helper()
	return &memAccounts{
		nextID: 7,
		accounts: []Account{{
			ID:           7,
			Name:         "Ana",
			Mail:         "ana@example.com",
			PasswordHash: mustHash(t, "secreto123"),
			CreatedAt:    time.Now(),
		}},
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

var hexToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestAuthenticator_Success(t *testing.T) {
	accounts := newTestAccounts(t)
	auth := NewAuthenticator(accounts, testHasher, RandomTokenGenerator{})

	sd, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
	require.NoError(t, err)
	assert.Equal(t, int64(7), sd.ID)
	assert.Equal(t, "Ana", sd.Name)
	assert.Equal(t, "ana@example.com", sd.Email)
	assert.True(t, sd.IsLoggedIn)
	assert.Regexp(t, hexToken, sd.Token)
}

func TestAuthenticator_MailIsCaseInsensitive(t *testing.T) {
	auth := NewAuthenticator(newTestAccounts(t), testHasher, RandomTokenGenerator{})

	sd, err := auth.Authenticate(context.Background(), "ANA@Example.com", "secreto123")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sd.Email, "descriptor carries the stored mail")
}

func TestAuthenticator_TokensDifferAcrossLogins(t *testing.T) {
	auth := NewAuthenticator(newTestAccounts(t), testHasher, RandomTokenGenerator{})

	first, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
	require.NoError(t, err)
	second, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestAuthenticator_ValidationSkipsStore(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		field    string
		reason   Reason
	}{
		{"malformed email", "bad", "secreto123", "email", ReasonInvalidFormat},
		{"empty email", "", "secreto123", "email", ReasonRequired},
		{"short password", "ana@example.com", "corta", "password", ReasonTooShort},
		{"long password", "ana@example.com", "abcdefghijklmnopqrstu", "password", ReasonTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := newTestAccounts(t)
			auth := NewAuthenticator(accounts, testHasher, RandomTokenGenerator{})

			_, err := auth.Authenticate(context.Background(), tt.email, tt.password)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field, tt.reason), "got %v", verr)
			assert.Zero(t, accounts.lookups(), "store must not be consulted")
		})
	}
}

func TestAuthenticator_CredentialFailures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		reason   Reason
	}{
		{"unknown email", "nadie@example.com", "secreto123", ReasonUnknownEmail},
		{"wrong password", "ana@example.com", "otraclave1", ReasonWrongPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewAuthenticator(newTestAccounts(t), testHasher, RandomTokenGenerator{})

			sd, err := auth.Authenticate(context.Background(), tt.email, tt.password)
			var aerr *AuthError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, tt.reason, aerr.Reason)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Empty(t, sd.Token)
			assert.False(t, sd.IsLoggedIn)
		})
	}
}

func TestAuthenticator_NilAccountIsUnknown(t *testing.T) {
	auth := NewAuthenticator(nilStore{}, testHasher, RandomTokenGenerator{})

	_, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ReasonUnknownEmail, aerr.Reason)
}

type nilStore struct{}

func (nilStore) FindByMail(context.Context, string) (*Account, error) { return nil, nil }

func TestAuthenticator_InfrastructureFailures(t *testing.T) {
	t.Run("store error", func(t *testing.T) {
		cause := errors.New("connection refused")
		accounts := newTestAccounts(t)
		accounts.findErr = cause
		auth := NewAuthenticator(accounts, testHasher, RandomTokenGenerator{})

		_, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
		var ierr *InfrastructureError
		require.ErrorAs(t, err, &ierr)
		assert.ErrorIs(t, err, cause)
		assert.NotContains(t, err.Error(), "connection refused")
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("corrupt hash", func(t *testing.T) {
		accounts := newTestAccounts(t)
		accounts.accounts[0].PasswordHash = "not-a-bcrypt-hash"
		auth := NewAuthenticator(accounts, testHasher, RandomTokenGenerator{})

		_, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
		var ierr *InfrastructureError
		require.ErrorAs(t, err, &ierr)
	})

	t.Run("token source failure", func(t *testing.T) {
		auth := NewAuthenticator(newTestAccounts(t), testHasher, RandomTokenGenerator{Reader: failingReader{}})

		sd, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
		var ierr *InfrastructureError
		require.ErrorAs(t, err, &ierr)
		assert.Empty(t, sd.Token)
	})
}

func TestAuthenticator_Concurrent(t *testing.T) {
	auth := NewAuthenticator(newTestAccounts(t), testHasher, RandomTokenGenerator{})

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sd, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
			if err == nil {
				tokens[i] = sd.Token
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, tok := range tokens {
		require.Regexp(t, hexToken, tok)
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}
