package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("secreto123")
	require.NoError(t, err)
	assert.NotEqual(t, "secreto123", hash)

	assert.NoError(t, h.Verify(hash, "secreto123"))
	assert.ErrorIs(t, h.Verify(hash, "secreto124"), ErrPasswordMismatch)
	assert.ErrorIs(t, h.Verify(hash, strings.Repeat("a", 80)), ErrPasswordMismatch)

	err = h.Verify("garbage", "secreto123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)
}

func TestNewBcryptHasherUsesDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher().Cost)
}
