package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/auth"
)

func TestVerify_RoundTrip(t *testing.T) {
	v := auth.NewVerifier("test-secret")

	token, err := v.Mint("user-42", time.Hour)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := auth.NewVerifier("secret-a").Mint("user-42", time.Hour)
	require.NoError(t, err)

	_, err = auth.NewVerifier("secret-b").Verify(token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestVerify_Expired(t *testing.T) {
	v := auth.NewVerifier("test-secret")
	token, err := v.Mint("user-42", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestVerify_Garbage(t *testing.T) {
	_, err := auth.NewVerifier("test-secret").Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}
