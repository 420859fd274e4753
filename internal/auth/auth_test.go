package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/internal/auth"
)

func TestGenerateKey(t *testing.T) {
	key, err := auth.GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, auth.KeyLength)
	assert.Regexp(t, "^[0-9A-Za-z]{20}$", key)

	other, err := auth.GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestDeriveKey(t *testing.T) {
	type testCase struct {
		name        string
		password    string
		expectedErr error
	}

	testCases := []testCase{
		{name: "normal password", password: "password123"},
		{name: "single char", password: "1"},
		{name: "unicode", password: "dkfghdfg90d78h350ß8dgfjkdfg#---23489dfg!!!"},
		{name: "empty password", password: "", expectedErr: auth.ErrEmptyPassword},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k, err := auth.DeriveKey(tc.password)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, k, 32)

			again, err := auth.DeriveKey(tc.password)
			require.NoError(t, err)
			assert.Equal(t, k, again)
		})
	}
}

func TestDeriveSessionKey(t *testing.T) {
	key := make([]byte, 32)
	serverNonce := make([]byte, 32)
	clientNonce := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
		serverNonce[i] = byte(i + 10)
		clientNonce[i] = byte(i + 20)
	}

	sessionKey := auth.DeriveSessionKey(key, serverNonce, clientNonce)
	assert.Len(t, sessionKey, 32)
	assert.Equal(t, sessionKey, auth.DeriveSessionKey(key, serverNonce, clientNonce))

	clientNonce[0] = 99
	assert.NotEqual(t, sessionKey, auth.DeriveSessionKey(key, serverNonce, clientNonce))
}
