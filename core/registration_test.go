package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	jobs []MailJob
	err  error
}

func (e *recordingEnqueuer) EnqueueWelcome(_ context.Context, job MailJob) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func TestRegistrationService_Register(t *testing.T) {
	accounts := &memAccounts{}
	mail := &recordingEnqueuer{}
	svc := NewRegistrationService(accounts, testHasher, mail)

	acc, err := svc.Register(context.Background(), RegistrationInput{Name: "  Ana  ", Email: "ana@example.com", Password: "secreto123"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.ID)
	assert.Equal(t, "Ana", acc.Name)

	stored, err := accounts.FindByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.NoError(t, testHasher.Verify(stored.PasswordHash, "secreto123"))

	require.Len(t, mail.jobs, 1)
	assert.NotEmpty(t, mail.jobs[0].ID)
	assert.Equal(t, acc.ID, mail.jobs[0].AccountID)
	assert.Equal(t, "ana@example.com", mail.jobs[0].Email)

	// the new account can log in
	auth := NewAuthenticator(accounts, testHasher, RandomTokenGenerator{})
	sd, err := auth.Authenticate(context.Background(), "ana@example.com", "secreto123")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, sd.ID)
}

func TestRegistrationService_Validation(t *testing.T) {
	accounts := &memAccounts{}
	svc := NewRegistrationService(accounts, testHasher, nil)

	_, err := svc.Register(context.Background(), RegistrationInput{Name: "   ", Email: "bad", Password: "corta"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name", ReasonRequired))
	assert.True(t, verr.Has("email", ReasonInvalidFormat))
	assert.True(t, verr.Has("password", ReasonTooShort))

	_, err = svc.Register(context.Background(), RegistrationInput{Name: strings.Repeat("n", 101), Email: "a@b.co", Password: "secreto123"})
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name", ReasonTooLong))
}

func TestRegistrationService_Duplicate(t *testing.T) {
	accounts := newTestAccounts(t)
	svc := NewRegistrationService(accounts, testHasher, &recordingEnqueuer{})

	_, err := svc.Register(context.Background(), RegistrationInput{Name: "Otra", Email: "ANA@example.com", Password: "secreto123"})
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestRegistrationService_EnqueueFailureKeepsAccount(t *testing.T) {
	accounts := &memAccounts{}
	svc := NewRegistrationService(accounts, testHasher, &recordingEnqueuer{err: errors.New("redis down")})

	acc, err := svc.Register(context.Background(), RegistrationInput{Name: "Ana", Email: "ana@example.com", Password: "secreto123"})
	require.NoError(t, err)
	n, _ := accounts.Count(context.Background())
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), acc.ID)
}

func TestRegistrationService_EnqueuesOnRedis(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewMailQueue(client)
	svc := NewRegistrationService(&memAccounts{}, testHasher, q)

	_, err := svc.Register(context.Background(), RegistrationInput{Name: "Ana", Email: "ana@example.com", Password: "secreto123"})
	require.NoError(t, err)

	payload, err := q.Reserve(context.Background(), DefaultVisibilityTimeout)
	require.NoError(t, err)
	job, err := DecodeMailJob(payload)
	require.NoError(t, err)
	assert.Equal(t, "Ana", job.Name)
}
