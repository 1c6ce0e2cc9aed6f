package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-userauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := auth.HashPassword(tt.password)

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrNoEmptyString)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)

			err = auth.ComparePasswordAndHash(tt.password, hash)
			assert.NoError(t, err)
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := auth.HashPassword(password)
	assert.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  bool
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
			wantErr:  false,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
			wantErr:  true,
		},
		{
			name:     "Invalid hash",
			password: password,
			hash:     "invalidhash",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ComparePasswordAndHash(tt.password, tt.hash)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.hash == hash {
					assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBcryptHasher_Cost(t *testing.T) {
	// the package level HashPassword reports the build default cost
	defaultHash, err := auth.HashPassword("qwerty123")
	require.NoError(t, err)
	buildCost, err := bcrypt.Cost([]byte(defaultHash))
	require.NoError(t, err)

	assert.Equal(t, bcrypt.MinCost, auth.NewBcryptHasher(bcrypt.MinCost).Cost)
	assert.Equal(t, buildCost, auth.NewBcryptHasher(0).Cost)
	assert.Equal(t, buildCost, auth.NewBcryptHasher(-1).Cost)
	assert.Equal(t, buildCost, auth.NewBcryptHasher(bcrypt.MaxCost+1).Cost)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.HashPassword("qwerty123")
	assert.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	assert.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.NoError(t, hasher.ComparePasswordAndHash("qwerty123", hash))
	assert.ErrorIs(t, hasher.ComparePasswordAndHash("qwerty124", hash), auth.ErrMismatchedHashAndPassword)
}
