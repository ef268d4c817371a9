package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name       string
		plain      string
		stored     string
		wantOK     bool
		wantRehash bool
	}{
		{name: "bcrypt match", plain: "s3cret", stored: string(hash), wantOK: true},
		{name: "bcrypt mismatch", plain: "nope", stored: string(hash)},
		{name: "plaintext match", plain: "123456", stored: "123456", wantOK: true, wantRehash: true},
		{name: "plaintext mismatch", plain: "12345", stored: "123456"},
		{name: "empty stored", plain: "", stored: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, rehash := VerifyPassword(tt.plain, tt.stored)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantRehash, rehash)
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("123456")
	require.NoError(t, err)
	require.True(t, IsBcryptHash(hash))
	require.True(t, CheckPassword("123456", hash))
	require.False(t, IsBcryptHash("123456"))
}
